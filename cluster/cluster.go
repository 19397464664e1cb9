package cluster

import (
	"context"
	"path"
	"sort"

	"github.com/ab180/mandelmr/cluster/node"
	"github.com/ab180/mandelmr/kv"
	_ "github.com/ab180/mandelmr/pkg/encoding/lz4"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

const (
	nodeNs  = "nodes"
	stateNs = "states"
)

// ErrNotFound is returned when an node with given host is not found.
var ErrNotFound = errors.New("node not found")

// Cluster is the set of coordinators and workers sharing a cluster state.
type Cluster interface {
	// Register makes the node discoverable until it is unregistered or the cluster is closed.
	Register(context.Context, *node.Node) (node.Registration, error)

	// Connect returns a gRPC connection to the host. Only one connection per host is kept.
	Connect(ctx context.Context, host string) (*grpc.ClientConn, error)

	// List returns registered nodes ordered by host.
	List(context.Context, ...ListOption) ([]*node.Node, error)

	// Get returns the node registered with the host, or ErrNotFound.
	Get(ctx context.Context, host string) (*node.Node, error)

	// States returns the cluster-wide state.
	States() kv.Store

	// Close stops renewing registrations and closes all connections.
	Close() error
}

type cluster struct {
	ctx    context.Context
	cancel context.CancelFunc

	clusterState kv.Store
	conns        *connPool
	options      Options
}

// Open creates a cluster view on top of the given state store.
// Nodes are discovered through the store, and connected over gRPC.
func Open(clusterState kv.Store, opt Options) (Cluster, error) {
	conns, err := newConnPool(opt)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &cluster{
		ctx:          ctx,
		cancel:       cancel,
		clusterState: clusterState,
		conns:        conns,
		options:      opt,
	}, nil
}

func nodeKey(host string) string {
	return path.Join(nodeNs, host, "info")
}

// nodeStatePrefix holds ephemeral states of the node. The trailing slash keeps
// a host from matching another host it is a prefix of.
func nodeStatePrefix(host string) string {
	return path.Join(stateNs, host) + "/"
}

func (c *cluster) Register(ctx context.Context, n *node.Node) (node.Registration, error) {
	return newNodeRegistration(ctx, n, c)
}

func (c *cluster) Connect(ctx context.Context, host string) (*grpc.ClientConn, error) {
	return c.conns.get(ctx, host)
}

func (c *cluster) List(ctx context.Context, option ...ListOption) ([]*node.Node, error) {
	var opt ListOption
	if len(option) > 0 {
		opt = option[0]
	}
	items, err := c.clusterState.Scan(ctx, nodeNs+"/")
	if err != nil {
		return nil, errors.Wrap(err, "scan nodes")
	}

	nodes := make([]*node.Node, 0, len(items))
	for _, item := range items {
		n := new(node.Node)
		if err := item.Unmarshal(n); err != nil {
			return nil, errors.Wrapf(err, "unmarshal item %s", item.Key)
		}
		if opt.Type != "" && n.Type != opt.Type {
			continue
		}
		if opt.Tag != nil && !n.TagMatches(opt.Tag) {
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Host < nodes[j].Host
	})
	return nodes, nil
}

func (c *cluster) Get(ctx context.Context, host string) (*node.Node, error) {
	n := new(node.Node)
	if err := c.clusterState.Get(ctx, nodeKey(host), n); err != nil {
		if err == kv.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get node %s", host)
	}
	return n, nil
}

func (c *cluster) States() kv.Store {
	return c.clusterState
}

func (c *cluster) Close() error {
	c.cancel()
	return c.conns.close()
}

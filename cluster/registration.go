package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/ab180/mandelmr/cluster/node"
	"github.com/ab180/mandelmr/kv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// nodeRegistration implements node.Registration. The node information and its states
// are bound to a lease, which is renewed whenever it is lost until the node is unregistered.
type nodeRegistration struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	node     *node.Node
	store    kv.Store
	interval time.Duration

	mu      sync.RWMutex
	lease   clientv3.LeaseID
	expired <-chan struct{}
}

func newNodeRegistration(ctx context.Context, n *node.Node, c *cluster) (*nodeRegistration, error) {
	regCtx, cancel := context.WithCancel(c.ctx)
	r := &nodeRegistration{
		ctx:      regCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		node:     n,
		store:    c.clusterState,
		interval: c.options.HeartbeatInterval,
	}
	if err := r.register(ctx); err != nil {
		cancel()
		return nil, err
	}
	log.Info().
		Str("host", n.Host).
		Str("type", string(n.Type)).
		Interface("tag", n.Tag).
		Msg("node registered")

	go r.keepRegistered()
	return r, nil
}

// register grants a new lease and puts the node information under it.
func (r *nodeRegistration) register(ctx context.Context) error {
	lease, err := r.store.GrantLease(ctx, r.interval)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}
	expired, err := r.store.KeepAlive(r.ctx, lease)
	if err != nil {
		return errors.Wrap(err, "keep lease alive")
	}
	if err := r.store.Put(ctx, nodeKey(r.node.Host), r.node, kv.WithLease(lease)); err != nil {
		return errors.Wrap(err, "put node information")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lease = lease
	r.expired = expired
	return nil
}

func (r *nodeRegistration) keepRegistered() {
	defer close(r.done)

	for {
		r.mu.RLock()
		expired := r.expired
		r.mu.RUnlock()

		select {
		case <-r.ctx.Done():
			return
		case <-expired:
		}
		if !r.renew() {
			return
		}
	}
}

// renew registers the node again, retrying every interval. It returns false
// if the registration ended before succeeding.
func (r *nodeRegistration) renew() bool {
	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return false
		case <-retryTimer.C:
		}

		ctx, cancel := context.WithTimeout(r.ctx, r.interval)
		err := r.register(ctx)
		cancel()
		if err == nil {
			log.Info().
				Str("host", r.node.Host).
				Msg("node registration renewed")
			return true
		}
		if r.ctx.Err() != nil {
			return false
		}
		log.Warn().
			Err(err).
			Str("host", r.node.Host).
			Dur("retryIn", r.interval).
			Msg("failed to renew node registration")
		retryTimer.Reset(r.interval)
	}
}

func (r *nodeRegistration) Info() *node.Node {
	return r.node
}

// States returns states of the node, which are removed when the node is unregistered
// or when its lease expires.
func (r *nodeRegistration) States() node.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return kv.WithPrefix(r.store.WithOptions(kv.WithLease(r.lease)), nodeStatePrefix(r.node.Host))
}

// Unregister stops renewing the registration, then removes the node and its states.
func (r *nodeRegistration) Unregister() {
	r.cancel()
	<-r.done

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()
	for _, prefix := range []string{nodeKey(r.node.Host), nodeStatePrefix(r.node.Host)} {
		if _, err := r.store.Delete(ctx, prefix); err != nil {
			log.Warn().
				Err(err).
				Str("host", r.node.Host).
				Str("prefix", prefix).
				Msg("failed to remove node registration")
		}
	}
}

package cluster_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/ab180/mandelmr/cluster"
	"github.com/ab180/mandelmr/cluster/node"
	"github.com/ab180/mandelmr/internal/errgroup"
	"github.com/ab180/mandelmr/kv"
	"github.com/ab180/mandelmr/test/integration"
	"github.com/ab180/mandelmr/test/testutils"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

const (
	tick        = time.Second
	testTimeout = 10 * tick
	numNodes    = 3
)

func TestCluster_List(t *testing.T) {
	Convey("Given a cluster", t, WithCluster(func(ctx context.Context, c cluster.Cluster) {
		Convey("Calling List()", WithTestNodes(t, c, func(nodes []node.Registration) {
			Convey("should return a list of discovered nodes ordered by host", func() {
				listedNodes, err := c.List(ctx)
				So(err, ShouldBeNil)
				So(listedNodes, ShouldHaveLength, len(nodes))
				for i := 1; i < len(listedNodes); i++ {
					So(listedNodes[i-1].Host, ShouldBeLessThan, listedNodes[i].Host)
				}
			})

			Convey("With selector, should match nodes by a tag", func() {
				listedNodes, err := c.List(ctx, cluster.ListOption{Tag: map[string]string{"No": "2"}})
				So(err, ShouldBeNil)
				So(listedNodes, ShouldHaveLength, 1)
				So(listedNodes[0].Host, ShouldEqual, nodes[2].Info().Host)
			})

			Convey("With type, should only return nodes of the type", func() {
				listedNodes, err := c.List(ctx, cluster.ListOption{Type: node.Coordinator})
				So(err, ShouldBeNil)
				So(listedNodes, ShouldHaveLength, 0)

				listedNodes, err = c.List(ctx, cluster.ListOption{Type: node.Worker})
				So(err, ShouldBeNil)
				So(listedNodes, ShouldHaveLength, len(nodes))
			})
		}))
	}))
}

func TestCluster_Register(t *testing.T) {
	Convey("Given a cluster", t, WithCluster(func(ctx context.Context, c cluster.Cluster) {
		Convey("Node information should be registered", func() {
			_, err := c.Register(ctx, &node.Node{
				Host: "test",
			})
			So(err, ShouldBeNil)
		})

		Convey("Registered node information should be removed after unregister", func() {
			nr, err := c.Register(ctx, &node.Node{
				Host: "test",
			})
			So(err, ShouldBeNil)

			nr.Unregister()

			_, err = c.Get(ctx, "test")
			So(err, ShouldEqual, cluster.ErrNotFound)
		})
	}))
}

func TestCluster_Connect(t *testing.T) {
	Convey("Given a cluster", t, WithCluster(func(ctx context.Context, c cluster.Cluster) {
		Convey("With connectable nodes", WithTestNodes(t, c, func(nodes []node.Registration) {
			Convey("It should be connected without error", func() {
				for i := 0; i < numNodes; i++ {
					cli, err := c.Connect(ctx, nodes[i].Info().Host)
					So(err, ShouldBeNil)
					So(cli.GetState(), ShouldEqual, connectivity.Ready)
				}
			})

			Convey("Connection should be maintained and cached", func() {
				for i := 0; i < numNodes; i++ {
					initial, err := c.Connect(ctx, nodes[i].Info().Host)
					So(err, ShouldBeNil)

					after, err := c.Connect(ctx, nodes[i].Info().Host)
					So(err, ShouldBeNil)

					So(initial, ShouldEqual, after)
				}
			})

			Convey("Should not leak when connecting in a race condition", func() {
				var wg errgroup.Group
				for i := 0; i < 10; i++ {
					wg.Go(func() error {
						_, err := c.Connect(ctx, nodes[0].Info().Host)
						return err
					})
				}
				So(wg.Wait(), ShouldBeNil)
				// leak is detected within WithCluster HoF
			})

			Convey("Should be reconnected automatically", func() {
				for i := 0; i < numNodes; i++ {
					failingCtx, cancelFailingCtx := context.WithCancel(testutils.ContextWithTimeout())
					initial, err := c.Connect(failingCtx, nodes[i].Info().Host)
					So(err, ShouldBeNil)
					cancelFailingCtx()

					_ = initial.Close()
					time.Sleep(100 * time.Millisecond)

					after, err := c.Connect(ctx, nodes[i].Info().Host)
					So(err, ShouldBeNil)

					So(initial, ShouldNotEqual, after)
				}
			})
		}))
	}))
}

func TestCluster_NodeStates(t *testing.T) {
	Convey("Given a cluster", t, WithCluster(func(ctx context.Context, c cluster.Cluster) {
		nodeReg, err := c.Register(ctx, &node.Node{
			Host: "10.0.0.1:700",
		})
		So(err, ShouldBeNil)

		Convey("Node states should be removed after unregister", func() {
			err := nodeReg.States().Put(ctx, "renders/R1", "Computing")
			So(err, ShouldBeNil)

			var state string
			err = nodeReg.States().Get(ctx, "renders/R1", &state)
			So(err, ShouldBeNil)
			So(state, ShouldEqual, "Computing")

			nodeReg.Unregister()

			err = nodeReg.States().Get(ctx, "renders/R1", &state)
			So(err, ShouldEqual, kv.ErrNotFound)
		})

		Convey("Given another node whose host starts with the same address", func() {
			otherReg, err := c.Register(ctx, &node.Node{
				Host: "10.0.0.1:7001",
			})
			So(err, ShouldBeNil)

			So(nodeReg.States().Put(ctx, "renders/R1", "Computing"), ShouldBeNil)
			So(otherReg.States().Put(ctx, "renders/R1", "Done"), ShouldBeNil)

			Convey("Their states should not collide", func() {
				var state string
				So(nodeReg.States().Get(ctx, "renders/R1", &state), ShouldBeNil)
				So(state, ShouldEqual, "Computing")
				So(otherReg.States().Get(ctx, "renders/R1", &state), ShouldBeNil)
				So(state, ShouldEqual, "Done")

				items, err := otherReg.States().Scan(ctx, "renders/")
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 1)
				So(items[0].Key, ShouldEqual, "renders/R1")
			})

			Convey("Unregistering one should keep the other", func() {
				nodeReg.Unregister()

				_, err := c.Get(ctx, "10.0.0.1:700")
				So(err, ShouldEqual, cluster.ErrNotFound)
				n, err := c.Get(ctx, "10.0.0.1:7001")
				So(err, ShouldBeNil)
				So(n.Host, ShouldEqual, "10.0.0.1:7001")

				var state string
				So(otherReg.States().Get(ctx, "renders/R1", &state), ShouldBeNil)
				So(state, ShouldEqual, "Done")
			})
		})
	}))
}

// flakyStore loses the first lease it keeps alive, and fails the two grants after the first.
type flakyStore struct {
	kv.Store
	grants     atomic.Int64
	keepAlives atomic.Int64
}

func (s *flakyStore) GrantLease(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, error) {
	if n := s.grants.Inc(); n == 2 || n == 3 {
		return clientv3.NoLease, errors.New("lease unavailable")
	}
	return s.Store.GrantLease(ctx, ttl)
}

func (s *flakyStore) KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan struct{}, error) {
	if s.keepAlives.Inc() == 1 {
		lost := make(chan struct{})
		close(lost)
		return lost, nil
	}
	return s.Store.KeepAlive(ctx, lease)
}

func TestCluster_RenewRegistration(t *testing.T) {
	Convey("Given a cluster whose state loses a lease", t, func() {
		st := &flakyStore{Store: kv.NewLocalMemory()}
		opt := cluster.DefaultOptions()
		opt.HeartbeatInterval = 100 * time.Millisecond
		c, err := cluster.Open(st, opt)
		So(err, ShouldBeNil)

		Reset(func() {
			So(c.Close(), ShouldBeNil)
			So(goleak.Find(), ShouldBeNil)
		})

		nodeReg, err := c.Register(testutils.ContextWithTimeout(), &node.Node{Host: "test", Type: node.Worker})
		So(err, ShouldBeNil)

		Convey("The node should be registered again after failed renewals are retried", func() {
			time.Sleep(time.Second)

			So(st.grants.Load(), ShouldEqual, int64(4))
			n, err := c.Get(testutils.ContextWithTimeout(), "test")
			So(err, ShouldBeNil)
			So(n.Type, ShouldEqual, node.Worker)

			nodeReg.Unregister()
			_, err = c.Get(testutils.ContextWithTimeout(), "test")
			So(err, ShouldEqual, cluster.ErrNotFound)
		})
	})
}

func WithCluster(fn func(context.Context, cluster.Cluster)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		st, closeStore := integration.ProvideStore()

		opt := cluster.DefaultOptions()
		opt.HeartbeatInterval = tick
		c, err := cluster.Open(st, opt)
		So(err, ShouldBeNil)

		Reset(func() {
			err = c.Close()
			So(err, ShouldBeNil)
			cancel()
			closeStore()
			So(goleak.Find(), ShouldBeNil)
		})

		fn(ctx, c)
	}
}

func WithTestNodes(t *testing.T, cluster cluster.Cluster, fn func(nodes []node.Registration)) func(c C) {
	return func(c C) {
		servers := make([]*grpc.Server, numNodes)
		nodes := make([]node.Registration, numNodes)

		for i := 0; i < numNodes; i++ {
			lis, err := net.Listen("tcp", "127.0.0.1:")
			require.Nil(t, err)

			servers[i] = grpc.NewServer()
			go func(i int) {
				// a scope may end before the server starts serving
				if err := servers[i].Serve(lis); err != nil && err != grpc.ErrServerStopped {
					panic(err)
				}
			}(i)

			n := &node.Node{
				Host: lis.Addr().String(),
				Type: node.Worker,
				Tag: map[string]string{
					"No": strconv.Itoa(i),
				},
			}
			nodes[i], err = cluster.Register(context.TODO(), n)
			require.Nil(t, err)
		}
		fn(nodes)

		Reset(func() {
			for i := 0; i < numNodes; i++ {
				servers[i].Stop()
				nodes[i].Unregister()
			}
		})
	}
}

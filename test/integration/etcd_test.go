package integration

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ab180/mandelmr/kv"
	"github.com/ab180/mandelmr/test/testutils"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/sync/errgroup"
)

func TestEtcd_Counter(t *testing.T) {
	RunOnIntegrationTest(t)
	Convey("Given an etcd cluster", t, WithEtcd(func(etcd kv.Store) {
		n := 100
		var counterRecords sync.Map

		Convey("Calling IncrementCounter() with a race condition", func(c C) {
			wg, wctx := errgroup.WithContext(testutils.ContextWithTimeout())
			for i := 0; i < n; i++ {
				wg.Go(func() error {
					count, err := etcd.IncrementCounter(wctx, "counter")
					if err != nil {
						return err
					}
					if _, duplicated := counterRecords.LoadOrStore(count, true); duplicated {
						return fmt.Errorf("number %d is duplicated", count)
					}
					return nil
				})
			}
			err := wg.Wait()
			So(err, ShouldBeNil)

			Convey("Should increment counter correctly", func() {
				counter, err := etcd.ReadCounter(testutils.ContextWithTimeout(), "counter")
				So(err, ShouldBeNil)
				So(counter, ShouldEqual, n)

				Convey("IncrementCounter should have returned atomically increased count", func() {
					// ensure that no misses on the record
					missed := "no miss"
					for i := int64(1); i <= int64(n); i++ {
						if _, exists := counterRecords.Load(i); !exists {
							missed = fmt.Sprintf("missing number %d", i)
							break
						}
					}
					So(missed, ShouldEqual, "no miss")
				})
			})
		})
	}))
}

func TestEtcd_Lease(t *testing.T) {
	RunOnIntegrationTest(t)
	Convey("Given an etcd cluster", t, WithEtcd(func(etcd kv.Store) {
		ctx := testutils.ContextWithTimeout(10 * time.Second)
		lease, err := etcd.GrantLease(ctx, time.Second)
		So(err, ShouldBeNil)

		So(etcd.WithOptions(kv.WithLease(lease)).Put(ctx, "status/renders/test", "RUNNING"), ShouldBeNil)

		Convey("Keys bound to the lease should disappear after the TTL", func() {
			time.Sleep(3 * time.Second)

			var status string
			So(etcd.Get(ctx, "status/renders/test", &status), ShouldEqual, kv.ErrNotFound)
		})
	}))
}

func WithEtcd(fn func(etcd kv.Store)) func() {
	return func() {
		etcd, closer := ProvideStore()
		Reset(closer)

		fn(etcd)
	}
}

package integration

import (
	"context"
	"time"

	"github.com/ab180/mandelmr/kv"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/thoas/go-funk"
)

// ProvideStore returns a cluster state for a test and a function removing it.
// Integration tests get a namespace of their own in etcd. Other tests get an in-memory store.
func ProvideStore() (st kv.Store, closer func()) {
	if !IsIntegrationTest {
		st := kv.NewLocalMemory()
		return st, func() { _ = st.Close() }
	}

	ns := "mandelmr_test_" + funk.RandomString(10) + "/"
	etcd, err := kv.NewEtcd(EtcdEndpoints(), ns)
	So(err, ShouldBeNil)

	return etcd, func() {
		// leased keys of unregistering nodes may still be written
		time.Sleep(400 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		deleted, err := etcd.Delete(ctx, "")
		So(err, ShouldBeNil)
		log.Info().
			Str("namespace", ns).
			Int64("deleted", deleted).
			Msg("cleaned up test namespace")
		So(etcd.Close(), ShouldBeNil)
	}
}

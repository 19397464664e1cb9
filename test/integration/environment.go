package integration

import (
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	integrationEnvKey   = "MANDELMR_TEST_INTEGRATION"
	etcdEndpointsEnvKey = "MANDELMR_TEST_ETCD_ENDPOINTS"
	defaultEtcdEndpoint = "127.0.0.1:2379"
)

// IsIntegrationTest is set by MANDELMR_TEST_INTEGRATION. Integration tests keep the
// cluster state in the etcd given by MANDELMR_TEST_ETCD_ENDPOINTS.
var IsIntegrationTest bool

func init() {
	if _, ok := os.LookupEnv(integrationEnvKey); ok {
		IsIntegrationTest = true
		log.Info().
			Strs("etcd", EtcdEndpoints()).
			Msg("Running integration tests.")
	}
}

// EtcdEndpoints parses comma-separated MANDELMR_TEST_ETCD_ENDPOINTS.
// It defaults to a local etcd.
func EtcdEndpoints() []string {
	endpoints := lo.Filter(
		lo.Map(strings.Split(os.Getenv(etcdEndpointsEnvKey), ","), func(ep string, _ int) string {
			return strings.TrimSpace(ep)
		}),
		func(ep string, _ int) bool {
			return ep != ""
		},
	)
	if len(endpoints) == 0 {
		return []string{defaultEtcdEndpoint}
	}
	return endpoints
}

func RunOnIntegrationTest(t *testing.T) {
	if !IsIntegrationTest {
		t.Skipf("Skipping %s since it is integration test.", t.Name())
	}
}

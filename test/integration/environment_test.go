package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEtcdEndpoints(t *testing.T) {
	t.Setenv(etcdEndpointsEnvKey, "")
	require.Equal(t, []string{defaultEtcdEndpoint}, EtcdEndpoints())

	t.Setenv(etcdEndpointsEnvKey, " 10.0.0.1:2379, ,10.0.0.2:2379")
	require.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, EtcdEndpoints())
}

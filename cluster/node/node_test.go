package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNode_Tags(t *testing.T) {
	n := New("127.0.0.1:7001", Worker)
	require.True(t, n.TagMatches(nil))
	require.False(t, n.TagMatches(map[string]string{"zone": ""}), "a missing tag should not match an empty value")
	require.Equal(t, "worker 127.0.0.1:7001", n.String())

	n.Tag = map[string]string{"zone": "b", "arch": "amd64"}
	require.True(t, n.TagMatches(map[string]string{"zone": "b"}))
	require.False(t, n.TagMatches(map[string]string{"zone": "a"}))
	require.Equal(t, "arch=amd64,zone=b", n.TagString())
	require.Equal(t, "worker 127.0.0.1:7001 (arch=amd64,zone=b)", n.String())
}

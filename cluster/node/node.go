package node

import (
	"sort"
	"strings"

	"github.com/ab180/mandelmr/kv"
)

type Type string

const (
	Coordinator Type = "coordinator"
	Worker      Type = "worker"
)

// Node is a process taking part in renders, as it is registered in the cluster state.
type Node struct {
	Host string `json:"host"`
	Type Type   `json:"type"`

	// Tag selects workers of a render (e.g. zone, hardware, or the group of local workers).
	Tag map[string]string `json:"tag,omitempty"`
}

func New(host string, typ Type) *Node {
	return &Node{
		Host: host,
		Type: typ,
	}
}

// TagMatches reports whether the node has every tag of the selector.
// An empty selector matches any node.
func (n *Node) TagMatches(selector map[string]string) bool {
	for k, v := range selector {
		if actual, ok := n.Tag[k]; !ok || actual != v {
			return false
		}
	}
	return true
}

// TagString formats tags as "k1=v1,k2=v2" ordered by key.
func (n *Node) TagString() string {
	keys := make([]string, 0, len(n.Tag))
	for k := range n.Tag {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k + "=" + n.Tag[k])
	}
	return sb.String()
}

func (n *Node) String() string {
	if len(n.Tag) == 0 {
		return string(n.Type) + " " + n.Host
	}
	return string(n.Type) + " " + n.Host + " (" + n.TagString() + ")"
}

// State is an ephemeral state of a node. It is removed when the node is unregistered
// or its registration lease expires.
type State kv.KV

// Registration is a node registered to the cluster.
type Registration interface {
	Info() *Node

	// States returns the states of this node only.
	States() State

	// Unregister removes the node and its states from the cluster.
	Unregister()
}

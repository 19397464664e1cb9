package cluster

import (
	"time"

	"github.com/ab180/mandelmr/cluster/node"
	"github.com/creasty/defaults"
)

type Options struct {
	ConnectTimeout time.Duration `default:"3s"`

	// MaxMessageSize specifies the maximum message size in bytes the gRPC client can receive/send.
	// The default value is 500mb.
	MaxMessageSize int `default:"524288000"`

	// HeartbeatInterval is the TTL of a node registration. A node whose lease is lost
	// stays invisible until its registration is renewed, which is retried every interval.
	HeartbeatInterval time.Duration `default:"10s"`

	// ConnectRetryCount is the number of attempts to dial a node before giving up.
	ConnectRetryCount int           `default:"3"`
	ConnectRetryDelay time.Duration `default:"200ms"`

	// Compressor is a name of the gRPC compressor used on every call. Empty disables compression.
	Compressor string `default:"lz4"`

	TLSCertPath       string
	TLSCertServerName string
}

func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

type ListOption struct {
	Type node.Type
	Tag  map[string]string
}

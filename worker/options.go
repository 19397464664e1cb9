package worker

import (
	"github.com/ab180/mandelmr/output"
	"github.com/creasty/defaults"
)

type Options struct {
	ListenHost     string `default:"127.0.0.1:7466"`
	AdvertisedHost string `default:"127.0.0.1:7466"`

	// NodeTags is used for selecting workers on scheduling.
	NodeTags map[string]string `default:"{}"`

	// MaxMessageSize specifies the maximum message size in bytes the gRPC server can receive/send.
	// The default value is 500mb.
	MaxMessageSize int `default:"524288000"`

	Output output.Options

	// ExperimentalCPUAffinity pins the compute loop of a render to a CPU core.
	ExperimentalCPUAffinity bool `default:"false"`
}

func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

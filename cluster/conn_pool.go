package cluster

import (
	"context"
	"sync"

	"github.com/ab180/mandelmr/pkg/retry"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// connPool keeps one gRPC connection per worker host.
type connPool struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	dialOpts []grpc.DialOption
	opt      Options
}

func newConnPool(opt Options) (*connPool, error) {
	callOpts := []grpc.CallOption{
		grpc.MaxCallRecvMsgSize(opt.MaxMessageSize),
		grpc.MaxCallSendMsgSize(opt.MaxMessageSize),
	}
	if opt.Compressor != "" {
		callOpts = append(callOpts, grpc.UseCompressor(opt.Compressor))
	}

	creds := insecure.NewCredentials()
	if opt.TLSCertPath != "" {
		var err error
		creds, err = credentials.NewClientTLSFromFile(opt.TLSCertPath, opt.TLSCertServerName)
		if err != nil {
			return nil, errors.Wrapf(err, "load TLS cert in %s", opt.TLSCertPath)
		}
	}
	return &connPool{
		conns: make(map[string]*grpc.ClientConn),
		dialOpts: []grpc.DialOption{
			grpc.WithBlock(),
			grpc.WithDefaultCallOptions(callOpts...),
			grpc.WithTransportCredentials(creds),
		},
		opt: opt,
	}, nil
}

// get returns the ready connection to host, dialing a new one if there is none.
func (p *connPool) get(ctx context.Context, host string) (*grpc.ClientConn, error) {
	if conn, ok := p.ready(host); ok {
		return conn, nil
	}
	log.Info().
		Str("host", host).
		Msg("establish new connection")

	return retry.DoWithResult(
		func() (*grpc.ClientConn, error) {
			return p.dial(ctx, host)
		},
		retry.WithRetryCount(p.opt.ConnectRetryCount),
		retry.WithDelay(p.opt.ConnectRetryDelay),
	)
}

func (p *connPool) ready(host string) (*grpc.ClientConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, ok := p.conns[host]
	return conn, ok && conn.GetState() == connectivity.Ready
}

// dial connects to host. ctx only bounds the dialing. When two callers race,
// the connection that became ready first is kept and the other is closed.
func (p *connPool) dial(ctx context.Context, host string) (*grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.opt.ConnectTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, host, p.dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", host)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.conns[host]; ok && existing.GetState() == connectivity.Ready {
		if err := conn.Close(); err != nil {
			log.Warn().
				Err(err).
				Str("host", host).
				Msg("failed to close redundant connection")
		}
		return existing, nil
	}
	p.conns[host] = conn
	return conn, nil
}

func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var merr *multierror.Error
	for host, conn := range p.conns {
		if err := conn.Close(); err != nil && status.Code(err) != codes.Canceled {
			merr = multierror.Append(merr, errors.Wrapf(err, "close connection to %s", host))
		}
		delete(p.conns, host)
	}
	return merr.ErrorOrNil()
}

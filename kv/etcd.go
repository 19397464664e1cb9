package kv

import (
	"context"
	"time"

	"github.com/airbloc/logger"
	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type Etcd struct {
	Client *clientv3.Client
	KV     clientv3.KV
	Lease  clientv3.Lease

	log          logger.Logger
	option       EtcdOptions
	writeOptions []WriteOption
}

type EtcdOptions struct {
	DialTimeout time.Duration `default:"5s"`
	OpTimeout   time.Duration `default:"3s"`

	// ClientLogs enables logs of the etcd client itself.
	ClientLogs bool `default:"false"`
}

func DefaultEtcdOptions() (o EtcdOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

func NewEtcd(endpoints []string, nsPrefix string, opts ...EtcdOptions) (Store, error) {
	option := DefaultEtcdOptions()
	if len(opts) > 0 {
		option = opts[0]
	}

	cfg := clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: option.DialTimeout,
		DialOptions: []grpc.DialOption{grpc.WithBlock()},
	}
	if !option.ClientLogs {
		cfg.Logger = zap.NewNop()
	}
	cli, err := clientv3.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Etcd{
		Client: cli,
		KV:     namespace.NewKV(cli, nsPrefix),
		Lease:  namespace.NewLease(cli, nsPrefix),
		log:    logger.New("etcd"),
		option: option,
	}, nil
}

func (e *Etcd) Get(ctx context.Context, key string, valuePtr interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(resp.Kvs) == 0 {
		return ErrNotFound
	}
	return jsoniter.Unmarshal(resp.Kvs[0].Value, valuePtr)
}

func (e *Etcd) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return
	}
	for _, kv := range resp.Kvs {
		results = append(results, rawItemOf(kv))
	}
	return
}

func rawItemOf(kv *mvccpb.KeyValue) RawItem {
	return RawItem{
		Key:   string(kv.Key),
		Value: kv.Value,
	}
}

func (e *Etcd) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	jsonVal, err := jsoniter.MarshalToString(value)
	if err != nil {
		return err
	}
	var etcdOpts []clientv3.OpOption
	opt := buildWriteOption(append(e.writeOptions, opts...))
	if opt.Lease != clientv3.NoLease {
		etcdOpts = append(etcdOpts, clientv3.WithLease(opt.Lease))
	}
	_, err = e.KV.Put(ctx, key, jsonVal, etcdOpts...)
	return err
}

func (e *Etcd) GrantLease(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, error) {
	lease, err := e.Lease.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	return lease.ID, nil
}

func (e *Etcd) KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan struct{}, error) {
	resp, err := e.Lease.KeepAlive(ctx, lease)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range resp {
			// drain KeepAlive response channel
		}
		e.log.Verbose("keepalive of lease {} finished", lease)
	}()
	return done, nil
}

// IncrementCounter is an atomic operation increasing the counter in given key.
// returns a increased value of the counter right after the operation.
func (e *Etcd) IncrementCounter(ctx context.Context, key string) (counter int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	// uses version as a cheap atomic counter
	result, err := e.KV.Put(ctx, key, counterMark, clientv3.WithPrevKV())
	if err != nil {
		return
	}
	if result.PrevKv == nil {
		counter = 1
		return
	}
	counter = result.PrevKv.Version + 1
	return
}

func (e *Etcd) ReadCounter(ctx context.Context, key string) (counter int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return
	}
	if len(resp.Kvs) == 0 {
		return 0, nil
	}
	if item := rawItemOf(resp.Kvs[0]); string(item.Value) != counterMark {
		return 0, ErrNotCounter
	}
	return resp.Kvs[0].Version, nil
}

// Delete remove all keys starting with given prefix.
func (e *Etcd) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	var opts []clientv3.OpOption
	if prefix == "" {
		prefix = "\x00"
		opts = append(opts, clientv3.WithFromKey())
	} else {
		opts = append(opts, clientv3.WithPrefix())
	}
	resp, err := e.KV.Delete(ctx, prefix, opts...)
	if err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// WithOptions returns a child etcd store with given options applied.
func (e *Etcd) WithOptions(opt ...WriteOption) KV {
	child := *e
	child.writeOptions = append(append([]WriteOption{}, e.writeOptions...), opt...)
	return &child
}

func (e *Etcd) Close() error {
	return e.Client.Close()
}

var _ Store = (*Etcd)(nil)

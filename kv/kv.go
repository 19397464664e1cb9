package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrNotCounter = errors.New("key is not a counter")
)

// KV is a key-value view on the cluster state. Values are stored as JSON.
type KV interface {
	Get(ctx context.Context, key string, valuePtr interface{}) error
	Scan(ctx context.Context, prefix string) (results []RawItem, err error)
	Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error

	// Delete removes all keys starting with given prefix.
	Delete(ctx context.Context, prefix string) (deleted int64, err error)
}

// Store is the cluster-wide state shared by the coordinator and workers.
type Store interface {
	KV

	// IncrementCounter is an atomic operation increasing the counter in given key.
	// returns a increased value of the counter right after the operation.
	IncrementCounter(ctx context.Context, key string) (count int64, err error)
	ReadCounter(ctx context.Context, key string) (count int64, err error)

	GrantLease(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, error)

	// KeepAlive keeps the lease alive until the context is cancelled.
	// The returned channel is closed when the lease is no longer kept alive.
	KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan struct{}, error)

	// WithOptions returns a view of the store which applies given options on every write.
	WithOptions(opts ...WriteOption) KV

	Close() error
}

package kv

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type localMemory struct {
	opt    localMemoryOptions
	data   sync.Map
	leases sync.Map

	counter     map[string]int64
	counterLock sync.RWMutex
}

type entry struct {
	item  RawItem
	lease clientv3.LeaseID
}

type leaseState struct {
	deadline time.Time
	ttl      time.Duration
}

// NewLocalMemory creates a store living in the process memory.
// It is used for single-host renders and tests.
func NewLocalMemory(opts ...LocalMemoryOption) Store {
	lm := &localMemory{
		counter: map[string]int64{},
	}
	for _, o := range opts {
		o(&lm.opt)
	}
	return lm
}

func (lm *localMemory) simulate(ctx context.Context) error {
	time.Sleep(lm.opt.simulatedDelay)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return lm.opt.simulatedError
}

func (lm *localMemory) Get(ctx context.Context, key string, valuePtr interface{}) error {
	if err := lm.simulate(ctx); err != nil {
		return err
	}
	v, ok := lm.data.Load(key)
	if !ok {
		return ErrNotFound
	}
	e := v.(entry)
	if lm.isAfterDeadline(e.lease) {
		lm.expireLease(key, e.lease)
		return ErrNotFound
	}
	return e.item.Unmarshal(valuePtr)
}

func (lm *localMemory) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	if err := lm.simulate(ctx); err != nil {
		return nil, err
	}
	lm.data.Range(func(key, value interface{}) bool {
		if !strings.HasPrefix(key.(string), prefix) {
			return true
		}
		e := value.(entry)
		if lm.isAfterDeadline(e.lease) {
			lm.expireLease(key, e.lease)
			return true
		}
		results = append(results, e.item)
		return true
	})
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return
}

func (lm *localMemory) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	if err := lm.simulate(ctx); err != nil {
		return err
	}
	opt := buildWriteOption(opts)
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	lm.data.Store(key, entry{
		lease: opt.Lease,
		item: RawItem{
			Key:   key,
			Value: raw,
		},
	})
	return nil
}

func (lm *localMemory) IncrementCounter(ctx context.Context, key string) (count int64, err error) {
	if err = lm.simulate(ctx); err != nil {
		return
	}
	lm.counterLock.Lock()
	defer lm.counterLock.Unlock()

	lm.counter[key]++
	return lm.counter[key], nil
}

func (lm *localMemory) ReadCounter(ctx context.Context, key string) (count int64, err error) {
	if err := lm.simulate(ctx); err != nil {
		return 0, err
	}
	if _, ok := lm.data.Load(key); ok {
		return 0, ErrNotCounter
	}
	lm.counterLock.RLock()
	defer lm.counterLock.RUnlock()
	return lm.counter[key], nil
}

func (lm *localMemory) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	if err = lm.simulate(ctx); err != nil {
		return
	}
	lm.data.Range(func(key, value interface{}) bool {
		k := key.(string)
		if strings.HasPrefix(k, prefix) {
			lm.data.Delete(k)
			deleted++
		}
		return true
	})

	lm.counterLock.Lock()
	defer lm.counterLock.Unlock()
	for k := range lm.counter {
		if strings.HasPrefix(k, prefix) {
			delete(lm.counter, k)
			deleted++
		}
	}
	return deleted, nil
}

func (lm *localMemory) GrantLease(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, error) {
	if err := lm.simulate(ctx); err != nil {
		return clientv3.NoLease, err
	}
	lease := clientv3.LeaseID(rand.Int63() + 1)
	lm.leases.Store(lease, leaseState{
		deadline: time.Now().Add(ttl),
		ttl:      ttl,
	})
	return lease, nil
}

func (lm *localMemory) KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan struct{}, error) {
	v, ok := lm.leases.Load(lease)
	if !ok {
		return nil, ErrNotFound
	}
	ttl := v.(leaseState).ttl

	done := make(chan struct{})
	go func() {
		defer close(done)

		interval := ttl / 3
		if interval <= 0 {
			interval = time.Millisecond
		}
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				if _, ok := lm.leases.Load(lease); !ok {
					return
				}
				lm.leases.Store(lease, leaseState{
					deadline: time.Now().Add(ttl),
					ttl:      ttl,
				})

			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}

func (lm *localMemory) isAfterDeadline(lease clientv3.LeaseID) (expired bool) {
	if lease == clientv3.NoLease {
		return false
	}
	v, ok := lm.leases.Load(lease)
	if !ok {
		return true
	}
	return time.Now().After(v.(leaseState).deadline)
}

func (lm *localMemory) expireLease(key interface{}, lease clientv3.LeaseID) {
	lm.leases.Delete(lease)
	lm.data.Delete(key)
}

func (lm *localMemory) WithOptions(opts ...WriteOption) KV {
	return &localMemoryView{
		localMemory: lm,
		opts:        opts,
	}
}

func (lm *localMemory) Close() error {
	return nil
}

// localMemoryView applies write options on top of the shared local memory.
type localMemoryView struct {
	*localMemory
	opts []WriteOption
}

func (v *localMemoryView) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	return v.localMemory.Put(ctx, key, value, append(append([]WriteOption{}, v.opts...), opts...)...)
}

type localMemoryOptions struct {
	simulatedDelay time.Duration
	simulatedError error
}

type LocalMemoryOption func(*localMemoryOptions)

func WithSimulatedDelay(delay time.Duration) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedDelay = delay
	}
}

func WithSimulatedError(err error) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedError = err
	}
}

var _ Store = (*localMemory)(nil)

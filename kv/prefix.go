package kv

import (
	"context"
	"strings"
)

// WithPrefix returns a view of kv where every key lives under the prefix.
// Keys given to the view and returned by Scan are relative to the prefix.
func WithPrefix(kv KV, prefix string) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

type prefixed struct {
	kv     KV
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string, valuePtr interface{}) error {
	return p.kv.Get(ctx, p.prefix+key, valuePtr)
}

func (p *prefixed) Scan(ctx context.Context, prefix string) ([]RawItem, error) {
	items, err := p.kv.Scan(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Key = strings.TrimPrefix(items[i].Key, p.prefix)
	}
	return items, nil
}

func (p *prefixed) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	return p.kv.Put(ctx, p.prefix+key, value, opts...)
}

func (p *prefixed) Delete(ctx context.Context, prefix string) (int64, error) {
	return p.kv.Delete(ctx, p.prefix+prefix)
}

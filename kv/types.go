package kv

import (
	jsoniter "github.com/json-iterator/go"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// counterMark is value used for counter keys. If a key's value equals to counterMark,
// it means the key is counter and its value would be its version.
const counterMark = "__counter"

// RawItem is a data of item which isn't unmarshalled yet.
type RawItem struct {
	Key   string
	Value []byte
}

func (r RawItem) Unmarshal(value interface{}) error {
	// assuming that the value is a struct pointer
	return jsoniter.Unmarshal(r.Value, value)
}

type writeOption struct {
	Lease clientv3.LeaseID
}

type WriteOption func(o *writeOption)

// WithLease binds written keys to the lease. The keys are deleted when the lease expires.
func WithLease(lease clientv3.LeaseID) WriteOption {
	return func(o *writeOption) {
		o.Lease = lease
	}
}

func buildWriteOption(opts []WriteOption) (o writeOption) {
	o.Lease = clientv3.NoLease
	for _, fn := range opts {
		fn(&o)
	}
	return
}

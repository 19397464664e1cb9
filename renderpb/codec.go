package renderpb

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// CodecName is the name registered for the JSON codec. Clients select it with
// grpc.CallContentSubtype(CodecName).
const CodecName = "json"

var json = jsoniter.ConfigFastest

func init() {
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (codec) String() string {
	return CodecName
}

func (codec) Name() string {
	return CodecName
}

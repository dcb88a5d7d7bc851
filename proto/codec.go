package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype carrying the hand-maintained
// message types. Clients must pass grpc.CallContentSubtype(CodecName);
// the server picks the codec from the request's content type.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec over encoding/json. JSON keeps
// the two special wire shapes intact: blob payloads ride as opaque base64
// strings and Ref values keep their three-field form instead of being
// replaced by a resolved value.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

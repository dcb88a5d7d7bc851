package agent

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	// KindNull is the zero Value.
	KindNull Kind = iota
	// KindBool carries a boolean.
	KindBool
	// KindNumber carries a float64. Integer-exact payloads belong in a blob.
	KindNumber
	// KindString carries a string.
	KindString
	// KindBlob carries an opaque serialized payload. The core never
	// inspects its contents.
	KindBlob
	// KindRef carries a reference to a result another Host may still be
	// computing. Refs cross the wire as-is; the serving Host resolves them
	// against their origin before dispatching to an actor.
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	case KindRef:
		return "ref"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Ref identifies a pending (or completed) call on an origin Host. Any party
// holding a Ref can resolve it directly against the origin, for as long as
// the origin retains the corresponding pending call.
type Ref struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	RequestID string `json:"request_id"`
}

// Endpoint returns the origin host:port of the Ref.
func (r Ref) Endpoint() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r Ref) String() string {
	return fmt.Sprintf("Ref{%s %s}", r.Endpoint(), r.RequestID)
}

// Value is the tagged variant passed between actors. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind    `json:"kind"`
	Bool   bool    `json:"bool,omitempty"`
	Number float64 `json:"number,omitempty"`
	Str    string  `json:"str,omitempty"`
	Blob   []byte  `json:"blob,omitempty"`
	Ref    *Ref    `json:"ref,omitempty"`
}

// Null returns the null Value.
func Null() Value { return Value{Kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number wraps a float64.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// String wraps a string.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Blob wraps an opaque payload. The slice is not copied.
func Blob(b []byte) Value { return Value{Kind: KindBlob, Blob: b} }

// RefValue wraps a Ref.
func RefValue(r Ref) Value { return Value{Kind: KindRef, Ref: &r} }

// JSONBlob marshals v and wraps the result in a blob Value. It is a
// convenience for agent-logic layers that speak JSON; the core treats the
// result as opaque bytes either way.
func JSONBlob(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Null(), fmt.Errorf("marshal blob payload: %w", err)
	}
	return Blob(data), nil
}

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsRef reports whether the Value is an unresolved reference.
func (v Value) IsRef() bool { return v.Kind == KindRef }

// AsString returns the string payload, or false if the Value is not a string.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// AsBool returns the boolean payload, or false if the Value is not a bool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// AsNumber returns the numeric payload, or false if the Value is not a number.
func (v Value) AsNumber() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Number, true
}

// AsBlob returns the blob payload, or false if the Value is not a blob.
func (v Value) AsBlob() ([]byte, bool) {
	if v.Kind != KindBlob {
		return nil, false
	}
	return v.Blob, true
}

// AsRef returns the Ref payload, or false if the Value is not a ref.
func (v Value) AsRef() (Ref, bool) {
	if v.Kind != KindRef || v.Ref == nil {
		return Ref{}, false
	}
	return *v.Ref, true
}

// UnmarshalBlob deserializes a JSON blob payload into the provided pointer.
func (v Value) UnmarshalBlob(out any) error {
	if v.Kind != KindBlob {
		return fmt.Errorf("value is %s, not blob", v.Kind)
	}
	return json.Unmarshal(v.Blob, out)
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	case KindBlob:
		return fmt.Sprintf("blob(%d bytes)", len(v.Blob))
	case KindRef:
		return v.Ref.String()
	}
	return "value(" + v.Kind.String() + ")"
}

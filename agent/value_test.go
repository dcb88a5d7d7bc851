package agent

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValueConstructorsAndAccessors(t *testing.T) {
	t.Run("string round trip", func(t *testing.T) {
		v := String("hi")
		s, ok := v.AsString()
		if !ok || s != "hi" {
			t.Fatalf("AsString = %q, %v", s, ok)
		}
		if _, ok := v.AsBool(); ok {
			t.Error("AsBool should fail on a string value")
		}
	})

	t.Run("number round trip", func(t *testing.T) {
		v := Number(3.5)
		n, ok := v.AsNumber()
		if !ok || n != 3.5 {
			t.Fatalf("AsNumber = %v, %v", n, ok)
		}
	})

	t.Run("null", func(t *testing.T) {
		if !Null().IsNull() {
			t.Error("Null() should be null")
		}
		if String("").IsNull() {
			t.Error("empty string is not null")
		}
	})

	t.Run("blob is opaque", func(t *testing.T) {
		v := Blob([]byte(`{"k":"v"}`))
		b, ok := v.AsBlob()
		if !ok || string(b) != `{"k":"v"}` {
			t.Fatalf("AsBlob = %q, %v", b, ok)
		}
	})

	t.Run("ref round trip", func(t *testing.T) {
		ref := Ref{Host: "127.0.0.1", Port: 9090, RequestID: "req-1"}
		v := RefValue(ref)
		if !v.IsRef() {
			t.Fatal("expected ref value")
		}
		got, ok := v.AsRef()
		if !ok || got != ref {
			t.Fatalf("AsRef = %+v, %v", got, ok)
		}
		if got.Endpoint() != "127.0.0.1:9090" {
			t.Errorf("Endpoint = %q", got.Endpoint())
		}
	})
}

func TestValueJSONPreservesShape(t *testing.T) {
	// Refs and blobs must survive encoding unchanged: the wire codec relies
	// on this to pass placeholders through without forcing them.
	in := []Value{
		String("hi"),
		Number(2),
		Bool(true),
		Null(),
		Blob([]byte("payload")),
		RefValue(Ref{Host: "10.0.0.1", Port: 7000, RequestID: "abc"}),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out []Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Kind != in[i].Kind {
			t.Errorf("value %d: kind %s, want %s", i, out[i].Kind, in[i].Kind)
		}
	}
	if ref, ok := out[5].AsRef(); !ok || ref.RequestID != "abc" {
		t.Errorf("ref did not survive the round trip: %+v", out[5])
	}
	if b, ok := out[4].AsBlob(); !ok || string(b) != "payload" {
		t.Errorf("blob did not survive the round trip: %+v", out[4])
	}
}

func TestJSONBlob(t *testing.T) {
	v, err := JSONBlob(map[string]string{"role": "user"})
	if err != nil {
		t.Fatalf("JSONBlob: %v", err)
	}

	var out map[string]string
	if err := v.UnmarshalBlob(&out); err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if out["role"] != "user" {
		t.Errorf("payload = %v", out)
	}

	if err := String("x").UnmarshalBlob(&out); err == nil {
		t.Error("UnmarshalBlob should reject non-blob values")
	}
}

func TestRegistry(t *testing.T) {
	classes := map[string]Constructor{
		"echo": func(args []Value) (Actor, error) { return nil, nil },
	}
	reg := NewRegistry(classes)

	// Registry copies the allow-list at construction.
	classes["sneaky"] = func(args []Value) (Actor, error) { return nil, nil }
	if reg.Has("sneaky") {
		t.Error("registry must not observe post-construction mutation")
	}

	if !reg.Has("echo") {
		t.Error("expected echo to be registered")
	}
	if got := reg.Classes(); len(got) != 1 || got[0] != "echo" {
		t.Errorf("Classes = %v", got)
	}

	_, err := reg.New("missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("New(missing) = %v, want ErrNotFound", err)
	}
}

func TestRetryable(t *testing.T) {
	for _, err := range []error{ErrConnection, ErrTimeout, ErrOverloaded} {
		if !Retryable(err) {
			t.Errorf("%v should be retryable", err)
		}
	}
	for _, err := range []error{ErrNotFound, RemoteError("boom"), nil} {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
	if !errors.Is(RemoteError("boom"), ErrRemote) {
		t.Error("RemoteError should match ErrRemote")
	}
}

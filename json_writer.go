package tradecost

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonObjectWriter writes a JSON object member by member, keys in the order
// they are appended, so that records encode byte for byte the same. The
// zero value is an empty object. The first error sticks and is returned by
// MarshalJSON.
type jsonObjectWriter struct {
	members []byte // comma separated members, no braces
	err     error
}

func (w *jsonObjectWriter) raw(members []byte) {
	if len(members) == 0 {
		return
	}
	if len(w.members) > 0 {
		w.members = append(w.members, ',')
	}
	w.members = append(w.members, members...)
}

// Append writes key with the JSON encoding of value.
func (w *jsonObjectWriter) Append(key string, value any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	v, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("key %q: %w", key, err)
		return w
	}
	k, _ := json.Marshal(key)
	w.raw(append(append(k, ':'), v...))
	return w
}

// Optional is Append, unless value is the zero value of its type.
func (w *jsonObjectWriter) Optional(key string, value any) *jsonObjectWriter {
	if v := reflect.ValueOf(value); !v.IsValid() || v.IsZero() {
		return w
	}
	return w.Append(key, value)
}

// Embed copies the members of a JSON object.
func (w *jsonObjectWriter) Embed(object []byte) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	object = bytes.TrimSpace(object)
	inner, ok := bytes.CutPrefix(object, []byte("{"))
	if ok {
		inner, ok = bytes.CutSuffix(inner, []byte("}"))
	}
	if !ok {
		w.err = fmt.Errorf("cannot embed %q, not an object", object)
		return w
	}
	w.raw(bytes.TrimSpace(inner))
	return w
}

// EmbedFrom copies the members of v encoded as a JSON object.
func (w *jsonObjectWriter) EmbedFrom(v any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	object, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("embed: %w", err)
		return w
	}
	return w.Embed(object)
}

// MarshalJSON returns the object written so far.
func (w *jsonObjectWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, len(w.members)+2)
	out = append(out, '{')
	out = append(out, w.members...)
	return append(out, '}'), nil
}

package replaytest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sc2-replay-analyzer/internal/protocol"
)

// Fixture archives carry their sections as JSON documents in the shape s2prot
// decodes real ones to. Importing this package swaps the built-in schemas'
// codec for FixtureCodec so fixtures decode through the normal pipeline.
func init() {
	reg := protocol.DefaultRegistry()
	for _, build := range reg.Builds() {
		s, err := reg.Lookup(build)
		if err != nil {
			continue
		}
		fixture := *s
		fixture.Codec = FixtureCodec{}
		reg.Register(&fixture)
	}
}

type jsonRecord struct {
	Loop   int64           `json:"loop"`
	UserID int64           `json:"userid"`
	ID     int64           `json:"id"`
	Event  protocol.Fields `json:"event"`
}

// FixtureCodec decodes JSON sections.
type FixtureCodec struct{}

func (FixtureCodec) Details(data []byte) (protocol.Fields, error) {
	return decodeStruct(data)
}

func (FixtureCodec) InitData(data []byte) (protocol.Fields, error) {
	return decodeStruct(data)
}

func (FixtureCodec) TrackerEvents(data []byte) ([]protocol.Record, error) {
	return decodeRecords(data)
}

func (FixtureCodec) GameEvents(data []byte) ([]protocol.Record, error) {
	return decodeRecords(data)
}

func decodeStruct(data []byte) (protocol.Fields, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	f, ok := v.(protocol.Fields)
	if !ok {
		return nil, fmt.Errorf("%w: section is not a struct", protocol.ErrMalformed)
	}
	return f, nil
}

func decodeRecords(data []byte) ([]protocol.Record, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: event stream is not a list", protocol.ErrMalformed)
	}
	out := make([]protocol.Record, 0, len(items))
	for i, item := range items {
		f, ok := item.(protocol.Fields)
		if !ok {
			return out, fmt.Errorf("%w: event %d is not a struct", protocol.ErrMalformed, i)
		}
		loop, _ := f.Int("loop")
		user, ok := f.Int("userid")
		if !ok {
			user = -1
		}
		id, _ := f.Int("id")
		ev, _ := f.Sub("event")
		out = append(out, protocol.Record{Loop: loop, UserID: user, EventID: id, Event: ev})
	}
	return out, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	return normalize(v), nil
}

// normalize turns objects into Fields and numbers into int64 where exact.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		f := make(protocol.Fields, len(t))
		for k, item := range t {
			f[k] = normalize(item)
		}
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

func encodeJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

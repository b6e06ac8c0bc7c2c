package docstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the stored form of a document, shared by all backends.
type Record struct {
	Data       map[string]any `json:"data"`
	CreateTime time.Time      `json:"createTime"`
	UpdateTime time.Time      `json:"updateTime"`
}

// Document turns the record into a snapshot detached from the record's maps.
func (r Record) Document(ref DocRef) Document {
	return Document{
		Ref:        ref,
		Data:       cloneMap(r.Data),
		CreateTime: r.CreateTime,
		UpdateTime: r.UpdateTime,
	}
}

func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRecord(raw []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	return r, nil
}

// Apply computes the record produced by applying w on top of existing
// (nil when the document is absent). A nil record with a nil error means the
// document must be removed.
func Apply(existing *Record, w Write, now time.Time) (*Record, error) {
	now = now.UTC()
	switch w.Kind {
	case WriteDelete:
		return nil, nil

	case WriteUpdate:
		if existing == nil {
			return nil, fmt.Errorf("update %s: %w", w.Ref, ErrNotFound)
		}
		fields, err := Normalize(w.Fields)
		if err != nil {
			return nil, err
		}
		next := &Record{
			Data:       cloneMap(existing.Data),
			CreateTime: existing.CreateTime,
			UpdateTime: now,
		}
		for k, v := range fields {
			next.Data[k] = v
		}
		return next, nil

	case WriteSet:
		cfg := buildSetConfig(w.Options)
		data, err := Normalize(w.Data)
		if err != nil {
			return nil, err
		}
		for _, field := range cfg.serverTimestamps {
			data[field] = now.Format(time.RFC3339Nano)
		}
		next := &Record{Data: data, CreateTime: now, UpdateTime: now}
		if existing != nil {
			next.CreateTime = existing.CreateTime
			if cfg.merge {
				merged := cloneMap(existing.Data)
				for k, v := range data {
					merged[k] = v
				}
				next.Data = merged
			}
		}
		return next, nil
	}
	return nil, fmt.Errorf("unknown write kind %d", w.Kind)
}

// Normalize converts a struct or map into the JSON value space the stores
// persist: map[string]any, []any, string, float64, bool and nil.
func Normalize(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("document must encode to an object: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeInto(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Staged applies a sequence of writes over records loaded by load, so a batch
// touching the same document twice sees its own earlier writes. It returns
// the final state per document path; nil entries are deletions.
func Staged(writes []Write, now time.Time, load func(DocRef) (*Record, error)) (map[string]*Record, []DocRef, error) {
	state := make(map[string]*Record, len(writes))
	refs := make([]DocRef, 0, len(writes))
	for _, w := range writes {
		if err := w.Ref.Validate(); err != nil {
			return nil, nil, err
		}
		path := w.Ref.Path()
		current, seen := state[path]
		if !seen {
			loaded, err := load(w.Ref)
			if err != nil {
				return nil, nil, err
			}
			current = loaded
			refs = append(refs, w.Ref)
		}
		next, err := Apply(current, w, now)
		if err != nil {
			return nil, nil, err
		}
		state[path] = next
	}
	return state, refs, nil
}

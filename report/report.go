// Package report renders the outcome of an update for humans and machines.
package report

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/codec"
)

// Entry is one unresolved batch.
type Entry struct {
	Keys  []string `json:"keys" msgpack:"keys" cbor:"keys"`
	Error string   `json:"error" msgpack:"error" cbor:"error"`
}

// Summary is the serializable result of one update.
type Summary struct {
	Total     int     `json:"total" msgpack:"total" cbor:"total"`
	Failed    int     `json:"failed" msgpack:"failed" cbor:"failed"`
	Succeeded bool    `json:"succeeded" msgpack:"succeeded" cbor:"succeeded"`
	Entries   []Entry `json:"failures" msgpack:"failures" cbor:"failures"`
}

// New summarizes failures of an update over total keys. Entries keep report order.
func New(total int, failures cacherefresh.Failures) Summary {
	s := Summary{Total: total, Succeeded: failures.Succeeded(), Entries: []Entry{}}
	for _, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		s.Failed += len(f.Keys)
		s.Entries = append(s.Entries, Entry{Keys: append([]string(nil), f.Keys...), Error: msg})
	}
	return s
}

var ErrUnknownFormat = errors.New("report: unknown format")

// Write encodes s to w. format is "json", "msgpack", "cbor" or "proto"
// (a google.protobuf.Struct in wire format).
func Write(w io.Writer, s Summary, format string) error {
	var (
		b   []byte
		err error
	)
	if format == "proto" {
		st, serr := ToStruct(s)
		if serr != nil {
			return serr
		}
		b, err = codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} }).Encode(st)
	} else {
		c, cerr := codec.ForFormat[Summary](format)
		if cerr != nil {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		b, err = c.Encode(s)
	}
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", format, err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	if format == "json" {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

// ToStruct converts s to a protobuf Struct with the same field names as the JSON form.
func ToStruct(s Summary) (*structpb.Struct, error) {
	entries := make([]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		keys := make([]any, len(e.Keys))
		for i, k := range e.Keys {
			keys[i] = k
		}
		entries = append(entries, map[string]any{"keys": keys, "error": e.Error})
	}
	return structpb.NewStruct(map[string]any{
		"total":     s.Total,
		"failed":    s.Failed,
		"succeeded": s.Succeeded,
		"failures":  entries,
	})
}

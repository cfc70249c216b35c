package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is the per-connection result a worker reports back to its parent.
// In threading mode it stays in memory; in forking mode it crosses the
// process boundary as a single JSON line on the worker's stdout — the only
// channel through which forked workers contribute to the parent register.
type Record struct {
	Status    int   `json:"status"`
	ElapsedNS int64 `json:"elapsed_ns"`
}

func (r Record) Elapsed() time.Duration {
	return time.Duration(r.ElapsedNS)
}

// Success holds for any response the server produced with a non-error
// status. Status 0 means the worker died before responding.
func (r Record) Success() bool {
	return r.Status >= 200 && r.Status < 400
}

// Encode writes the record as one line.
func (r Record) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

// DecodeRecord parses a worker's output line.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(bytes.TrimSpace(b), &r); err != nil {
		return Record{}, fmt.Errorf("decode worker record %q: %w", b, err)
	}
	return r, nil
}

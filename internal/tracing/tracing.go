// Package tracing records a runtime execution trace of a paperback run so a
// slow create or restore can be inspected with `go tool trace`.
package tracing

import (
	"errors"
	"fmt"
	"os"
	"runtime/trace"
	"sync"
	"time"
)

// DefaultMaxBytes bounds the in-memory trace window.
const DefaultMaxBytes = 16 << 20

// ErrNotRunning is returned by Dump when the recorder was never started or
// has been stopped.
var ErrNotRunning = errors.New("trace recorder not running")

// Recorder keeps the most recent part of the execution trace in memory and
// writes it out on demand.
type Recorder struct {
	mu sync.Mutex
	fr *trace.FlightRecorder
}

// Start begins recording, keeping at most maxBytes of trace data (0 means
// DefaultMaxBytes).
func Start(maxBytes uint64) (*Recorder, error) {
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   time.Minute,
		MaxBytes: maxBytes,
	})
	if err := fr.Start(); err != nil {
		return nil, fmt.Errorf("start trace recorder: %w", err)
	}
	return &Recorder{fr: fr}, nil
}

// Running reports whether r is still recording.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fr != nil && r.fr.Enabled()
}

// Dump writes the recorded window to path.
func (r *Recorder) Dump(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fr == nil || !r.fr.Enabled() {
		return ErrNotRunning
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	if _, err := r.fr.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write trace: %w", err)
	}
	return f.Close()
}

// Stop ends recording. It is safe to call more than once.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fr != nil {
		r.fr.Stop()
		r.fr = nil
	}
}

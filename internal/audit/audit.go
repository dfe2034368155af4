// Package audit records sensitive actions for later compliance review.
// Recording is best-effort and asynchronous: a full buffer drops the
// entry with a warning and store failures are logged and swallowed, so
// the primary request is never blocked or failed by auditing.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"esawitku.app/internal/ids"
	"esawitku.app/internal/obs"
)

// Entry is one append-only audit record. Entries are never mutated or
// deleted by this package.
type Entry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resourceId,omitempty"`
	OldValues  json.RawMessage `json:"oldValues,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	IPAddress  string          `json:"ipAddress,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Store appends immutable entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

const (
	defaultBuffer       = 1024
	defaultAppendWindow = 5 * time.Second
)

// Recorder drains entries into the store from a background worker.
type Recorder struct {
	store  Store
	ch     chan Entry
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewRecorder starts the background worker. Call Close on shutdown to
// drain buffered entries.
func NewRecorder(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	r := &Recorder{
		store:  store,
		ch:     make(chan Entry, buffer),
		closed: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record queues one entry. It never blocks and never returns an error
// to the caller; a full buffer drops the entry with a warning.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return
	}

	select {
	case <-r.closed:
		r.warn("audit recorder closed, dropping entry", entry)
	default:
		select {
		case r.ch <- entry:
		default:
			r.warn("audit buffer full, dropping entry", entry)
		}
	}
}

// Close stops intake and waits up to timeout for the worker to drain.
// The channel itself is never closed so a Record racing Close cannot
// panic on the send; late entries are dropped with a warning.
func (r *Recorder) Close(timeout time.Duration) error {
	r.once.Do(func() {
		close(r.closed)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case entry := <-r.ch:
			r.append(entry)
		case <-r.closed:
			// Drain whatever is still buffered, then stop.
			for {
				select {
				case entry := <-r.ch:
					r.append(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) append(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultAppendWindow)
	defer cancel()
	if err := r.store.Append(ctx, &entry); err != nil {
		r.warn("audit append failed: "+err.Error(), entry)
	}
}

func (r *Recorder) warn(msg string, entry Entry) {
	obs.Event("warn", msg, map[string]any{
		"action": entry.Action,
		"user":   entry.UserID,
	})
}

// Package queue holds uploads awaiting a moderation decision. Records
// move from pending_review to approved or rejected exactly once; both
// outcomes remove them from the queue, and an entry is never lost any
// other way.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"audiogate/internal/store"
)

const keyPrefix = "pending:"

// StatusPendingReview is the only status a queued record can hold; the
// terminal states are represented by removal plus the audit trail.
const StatusPendingReview = "pending_review"

var (
	// ErrNotFound is returned for operations on an id that is not in
	// the queue (including the loser of a concurrent approve/reject).
	ErrNotFound = errors.New("queue: pending upload not found")
	// ErrDuplicateID is returned by Enqueue when the id is already
	// queued; entries are never silently overwritten.
	ErrDuplicateID = errors.New("queue: upload id already queued")
)

// PendingUpload is one upload awaiting review.
type PendingUpload struct {
	UploadID string `json:"upload_id"`

	Filename     string  `json:"filename"`
	OriginalName string  `json:"original_name"`
	Size         int64   `json:"size"`
	MimeType     string  `json:"mime_type"`
	Duration     float64 `json:"duration"` // seconds

	// URL references the content: a client blob reference or a remote
	// URL, never both assumed valid at once.
	URL string `json:"url"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Gender      string   `json:"gender"`
	Tags        []string `json:"tags"`

	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	DeviceID       string `json:"device_id"`
	DuplicateCount int    `json:"duplicate_count"`

	Status string `json:"status"`
	Reason string `json:"reason"`

	UploadedAt time.Time `json:"uploaded_at"`
}

// Queue is the pending set plus the process-wide auto-approve switch.
// All operations are safe for concurrent use; for a contested id the
// first resolution wins and later ones observe ErrNotFound.
type Queue struct {
	mu sync.Mutex
	kv store.KV

	autoApprove bool
	subscribers []chan bool
}

// New returns a queue over the given KV backend. Auto-approve starts
// off.
func New(kv store.KV) *Queue {
	return &Queue{kv: kv}
}

// Enqueue adds a new pending_review record.
func (q *Queue) Enqueue(u PendingUpload) error {
	if u.UploadID == "" {
		return fmt.Errorf("queue: enqueue with empty upload id")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	key := keyPrefix + u.UploadID
	if _, ok, err := q.kv.Get(key); err != nil {
		return err
	} else if ok {
		return ErrDuplicateID
	}

	u.Status = StatusPendingReview
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return q.kv.Set(key, string(raw))
}

// Approve removes the record from the queue and returns the data
// needed to materialize a published track.
func (q *Queue) Approve(uploadID string) (*PendingUpload, error) {
	return q.resolve(uploadID, "")
}

// Reject removes the record from the queue, attaching the moderator's
// reason for the audit trail.
func (q *Queue) Reject(uploadID, reason string) (*PendingUpload, error) {
	u, err := q.resolve(uploadID, reason)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (q *Queue) resolve(uploadID, rejectReason string) (*PendingUpload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := keyPrefix + uploadID
	raw, ok, err := q.kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	var u PendingUpload
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		// A record we cannot read is a record we cannot review.
		log.Printf("queue: malformed pending record %s: %v", uploadID, err)
		_ = q.kv.Delete(key)
		return nil, ErrNotFound
	}
	if err := q.kv.Delete(key); err != nil {
		return nil, err
	}
	if rejectReason != "" {
		u.Reason = rejectReason
	}
	return &u, nil
}

// List returns all currently pending entries ordered by submission
// time, deduplicated by upload id even if the backing store glitches.
func (q *Queue) List() ([]PendingUpload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys, err := q.kv.Keys(keyPrefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(keys))
	out := make([]PendingUpload, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := q.kv.Get(key)
		if err != nil || !ok {
			continue
		}
		var u PendingUpload
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			log.Printf("queue: skipping malformed pending record %s: %v", key, err)
			continue
		}
		if seen[u.UploadID] {
			continue
		}
		seen[u.UploadID] = true
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

// Len returns the number of pending entries.
func (q *Queue) Len() (int, error) {
	list, err := q.List()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// SetAutoApprove flips the process-wide switch. When active, new
// uploads bypass the queue regardless of the gate verdict. A change is
// broadcast to subscribers; setting the current value again is a no-op.
func (q *Queue) SetAutoApprove(active bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.autoApprove == active {
		return
	}
	q.autoApprove = active
	for _, ch := range q.subscribers {
		// Keep-latest: a stale buffered value is superseded, so a slow
		// subscriber always reads the most recent state.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- active:
		default:
		}
	}
}

// AutoApprove reports the current switch state.
func (q *Queue) AutoApprove() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.autoApprove
}

// Subscribe returns a channel that receives the new state on every
// auto-approve change, so interested parties observe toggles without
// polling.
func (q *Queue) Subscribe() <-chan bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := make(chan bool, 1)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

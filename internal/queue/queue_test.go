package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiogate/internal/store"
)

func pendingFixture(id string) PendingUpload {
	return PendingUpload{
		UploadID: id,
		Filename: id + ".webm",
		Size:     2048,
		MimeType: "audio/webm",
		Duration: 42,
		Title:    "test clip",
		Gender:   "female",
		Tags:     []string{"ambient", "female"},
		DeviceID: "dev_a",
		Reason:   "audio shorter than minimum duration",
	}
}

func TestEnqueueAndList(t *testing.T) {
	q := New(store.NewMemory())

	require.NoError(t, q.Enqueue(pendingFixture("u1")))
	require.NoError(t, q.Enqueue(pendingFixture("u2")))

	list, err := q.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusPendingReview, list[0].Status)
}

func TestEnqueueDuplicateID(t *testing.T) {
	q := New(store.NewMemory())

	require.NoError(t, q.Enqueue(pendingFixture("u1")))
	err := q.Enqueue(pendingFixture("u1"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	list, err := q.List()
	require.NoError(t, err)
	assert.Len(t, list, 1, "no silent overwrite")
}

func TestApproveRoundTrip(t *testing.T) {
	q := New(store.NewMemory())
	require.NoError(t, q.Enqueue(pendingFixture("u1")))

	u, err := q.Approve("u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UploadID)
	assert.Equal(t, "test clip", u.Title)

	list, err := q.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	// Terminal states do not come back.
	_, err = q.Approve("u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Reject("u1", "late")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectKeepsReason(t *testing.T) {
	q := New(store.NewMemory())
	require.NoError(t, q.Enqueue(pendingFixture("u1")))

	u, err := q.Reject("u1", "low quality recording")
	require.NoError(t, err)
	assert.Equal(t, "low quality recording", u.Reason)
}

func TestApproveMissingID(t *testing.T) {
	q := New(store.NewMemory())
	_, err := q.Approve("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDeduplicatesByUploadID(t *testing.T) {
	kv := store.NewMemory()
	q := New(kv)
	require.NoError(t, q.Enqueue(pendingFixture("u1")))

	// Simulate an upstream glitch: the same upload id stored twice
	// under different keys.
	raw, ok, err := kv.Get("pending:u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, kv.Set("pending:u1-ghost", raw))

	list, err := q.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListOrderedBySubmission(t *testing.T) {
	q := New(store.NewMemory())

	older := pendingFixture("u-old")
	older.UploadedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := pendingFixture("u-new")
	newer.UploadedAt = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	require.NoError(t, q.Enqueue(newer))
	require.NoError(t, q.Enqueue(older))

	list, err := q.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "u-old", list[0].UploadID)
}

func TestConcurrentResolveFirstWins(t *testing.T) {
	q := New(store.NewMemory())
	require.NoError(t, q.Enqueue(pendingFixture("u1")))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := q.Approve("u1")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := q.Reject("u1", "duplicate decision")
		errs <- err
	}()
	wg.Wait()
	close(errs)

	var notFound, resolved int
	for err := range errs {
		if err == nil {
			resolved++
		} else {
			assert.ErrorIs(t, err, ErrNotFound)
			notFound++
		}
	}
	assert.Equal(t, 1, resolved, "exactly one resolution wins")
	assert.Equal(t, 1, notFound)
}

func TestAutoApproveBroadcast(t *testing.T) {
	q := New(store.NewMemory())
	assert.False(t, q.AutoApprove(), "initialized off")

	ch := q.Subscribe()
	q.SetAutoApprove(true)
	assert.True(t, q.AutoApprove())

	select {
	case v := <-ch:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast on toggle")
	}

	// Setting the same value again is a no-op and does not broadcast.
	q.SetAutoApprove(true)
	select {
	case <-ch:
		t.Fatal("unexpected broadcast for unchanged state")
	default:
	}
}

func TestAutoApproveBroadcastKeepsLatest(t *testing.T) {
	q := New(store.NewMemory())
	ch := q.Subscribe()

	// Two toggles without a read in between: the stale buffered value
	// is superseded, never the newest one dropped.
	q.SetAutoApprove(true)
	q.SetAutoApprove(false)

	select {
	case v := <-ch:
		assert.False(t, v, "subscriber observes the most recent state")
	default:
		t.Fatal("expected the latest state to be buffered")
	}
	assert.False(t, q.AutoApprove())
}

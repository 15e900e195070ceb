package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiogate/internal/ledger"
	"audiogate/internal/store"
)

func TestSweepOnceRemovesExpiredLedgers(t *testing.T) {
	kv := store.NewMemory()
	ledgerStore := ledger.NewStore(kv)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ledgerStore.SetClock(func() time.Time { return now })

	ledgerStore.RecordUpload("dev_old", time.Minute, "h")
	now = base.Add(20 * 24 * time.Hour)
	ledgerStore.RecordUpload("dev_mid", time.Minute, "h")
	now = base.Add(31 * 24 * time.Hour)

	sweeper := NewSweeper(ledgerStore, nil, 30)

	deleted, err := sweeper.SweepOnce(now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only the 31-day-old ledger expires")

	keys, err := kv.Keys("ledger:")
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger:dev_mid"}, keys)
}

func TestSweepIdempotent(t *testing.T) {
	kv := store.NewMemory()
	ledgerStore := ledger.NewStore(kv)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ledgerStore.SetClock(func() time.Time { return now })
	ledgerStore.RecordUpload("dev_a", time.Minute, "h")

	sweeper := NewSweeper(ledgerStore, nil, 30)
	later := base.Add(40 * 24 * time.Hour)

	deleted, err := sweeper.SweepOnce(later)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = sweeper.SweepOnce(later)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "second pass with no new data deletes nothing")
}

func TestSweepEmptyStore(t *testing.T) {
	sweeper := NewSweeper(ledger.NewStore(store.NewMemory()), nil, 30)
	deleted, err := sweeper.SweepOnce(time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

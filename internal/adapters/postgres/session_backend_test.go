package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/gatehouse/internal/clock"
	domainsession "github.com/target/gatehouse/internal/domain/session"
	"github.com/target/gatehouse/internal/testutil"
)

func TestSessionBackend_RoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	tp := clock.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	b := NewSessionBackend(db, tp)
	ctx := context.Background()

	rec := domainsession.NewRecord("pg-1")
	rec.Data["Profile"] = map[string]any{"id": "u1"}
	rec.InitiatedAt = tp.Now()
	require.NoError(t, b.Save(ctx, rec, 10*time.Minute))

	got, err := b.Load(ctx, "pg-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "u1"}, got.Data["Profile"])
	assert.True(t, rec.InitiatedAt.Equal(got.InitiatedAt))

	tp.AddTime(11 * time.Minute)
	_, err = b.Load(ctx, "pg-1")
	assert.ErrorIs(t, err, domainsession.ErrNotFound)

	n, err := b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, b.Delete(ctx, "pg-1"))
}

func TestSessionBackend_LoadMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	b := NewSessionBackend(db, nil)
	_, err := b.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domainsession.ErrNotFound)
}

func TestSessionBackend_LeaseLock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	b := NewSessionBackend(db, nil)
	ctx := context.Background()

	release, err := b.Lock(ctx, "locked-id")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = b.Lock(waitCtx, "locked-id")
	require.Error(t, err)

	release()
	release()

	again, err := b.Lock(ctx, "locked-id")
	require.NoError(t, err)
	again()
}

func TestSessionBackend_LockRenewsLease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	b := NewSessionBackend(db, nil, WithLockTTL(300*time.Millisecond))
	ctx := context.Background()

	release, err := b.Lock(ctx, "slow-request")
	require.NoError(t, err)
	defer release()

	// Hold well past the lease; renewal must keep other holders out.
	time.Sleep(time.Second)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = b.Lock(waitCtx, "slow-request")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionBackend_ExpiredLeaseIsTakenOver(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	b := NewSessionBackend(db, nil)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO session_locks (id, token, expires_at) VALUES ($1, 'crashed', now() - interval '1 second')`, "orphan")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	release, err := b.Lock(waitCtx, "orphan")
	require.NoError(t, err)
	release()
}

// Two requests each regenerating a fresh session must not exhaust a pool
// sized to the number of requests.
func TestSessionBackend_ConcurrentRegenerateSmallPool(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	db.SetMaxOpenConns(2)

	b := NewSessionBackend(db, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	for i := range 2 {
		go func() {
			errs <- regenerateOnce(ctx, b, fmt.Sprintf("old-%d", i), fmt.Sprintf("new-%d", i))
		}()
	}
	for range 2 {
		require.NoError(t, <-errs)
	}

	for i := range 2 {
		_, err := b.Load(ctx, fmt.Sprintf("new-%d", i))
		require.NoError(t, err)
		_, err = b.Load(ctx, fmt.Sprintf("old-%d", i))
		require.ErrorIs(t, err, domainsession.ErrNotFound)
	}
}

// regenerateOnce follows the session manager's order: lock the current id,
// save, lock the new id, save under it, delete the old record, release both.
func regenerateOnce(ctx context.Context, b *SessionBackend, oldID, newID string) error {
	releaseOld, err := b.Lock(ctx, oldID)
	if err != nil {
		return err
	}
	defer releaseOld()
	if err = b.Save(ctx, domainsession.NewRecord(oldID), time.Minute); err != nil {
		return err
	}
	releaseNew, err := b.Lock(ctx, newID)
	if err != nil {
		return err
	}
	defer releaseNew()
	if err = b.Save(ctx, domainsession.NewRecord(newID), time.Minute); err != nil {
		return err
	}
	return b.Delete(ctx, oldID)
}

func TestSessionBackend_EmptyIDs(t *testing.T) {
	b := NewSessionBackend(nil, nil)
	_, err := b.Load(context.Background(), "")
	assert.ErrorIs(t, err, domainsession.ErrNotFound)
	assert.NoError(t, b.Delete(context.Background(), ""))
	assert.Error(t, b.Save(context.Background(), domainsession.Record{}, 0))
}

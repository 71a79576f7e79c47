package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/models"
)

func newTestCoordinator(store *fakeStorage) (*Coordinator, *Cache) {
	cache := NewCache()
	coord := NewCoordinator(store, cache, nil, zap.NewNop(), 3, time.Minute)
	return coord, cache
}

func pendingAppt(id string) models.Appointment {
	a := models.Appointment{
		ID:        id,
		MentorID:  1,
		StudentID: 10,
		Date:      "2025-03-17",
		TimeSlot:  "09:00",
		Subject:   "Mock interview",
		Status:    models.StatusPending,
	}
	a.AddEvent(testNow, "created", "")
	return a
}

func TestWriteCreatePublishesAuthoritativeRow(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	// No optimistic id: the store assigns one, and the authoritative
	// row replaces the optimistic guess.
	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	require.Equal(t, 1, cache.Len(), "optimistic entry must be replaced, not duplicated")
	got, ok := cache.Get(stored.ID)
	require.True(t, ok)
	require.Equal(t, stored.UpdatedAt, got.UpdatedAt)
}

func TestWriteCreateRollbackLeavesCacheEmpty(t *testing.T) {
	store := newFakeStorage()
	store.rejectNext = remoteRejected("slot already has a confirmed appointment")
	coord, cache := newTestCoordinator(store)

	_, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt("tmp-1"), Create: true})
	var se *SyncError
	require.True(t, errors.As(err, &se))
	require.Equal(t, SyncRemoteRejected, se.Reason)

	require.Equal(t, 0, cache.Len(), "rejected optimistic create must not linger")
}

func TestWriteUpdateRollbackRestoresSnapshot(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)
	before := cache.Snapshot()

	mutated := stored.Clone()
	mutated.Status = models.StatusConfirmed
	mutated.AddEvent(testNow, "approved", "")
	store.rejectNext = remoteRejected("slot already has a confirmed appointment")

	_, err = coord.Write(context.Background(), Mutation{Appointment: mutated, Observed: stored.UpdatedAt})
	var se *SyncError
	require.True(t, errors.As(err, &se))

	require.Equal(t, before, cache.Snapshot(), "cache must be identical to its pre-mutation state")
}

func TestWriteRetriesUnreachableThenSucceeds(t *testing.T) {
	store := newFakeStorage()
	store.failWrites = 2
	coord, cache := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)
	require.Equal(t, 3, store.writes, "two unreachable failures, then success")
	require.Equal(t, 1, cache.Len())
	require.NotEmpty(t, stored.ID)
}

func TestWriteSurfacesUnreachableAfterRetryBudget(t *testing.T) {
	store := newFakeStorage()
	store.failWrites = 100
	coord, cache := newTestCoordinator(store)

	_, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt("tmp-1"), Create: true})
	var se *SyncError
	require.True(t, errors.As(err, &se))
	require.Equal(t, SyncUnreachable, se.Reason)
	require.Equal(t, 0, cache.Len())
	require.Equal(t, 4, store.writes, "initial attempt plus three retries")
}

func TestWriteNeverRetriesStaleWrite(t *testing.T) {
	store := newFakeStorage()
	coord, _ := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)

	// Another writer lands remotely after our read.
	store.touch(stored.ID, stored.UpdatedAt.Add(time.Minute))

	mutated := stored.Clone()
	mutated.Status = models.StatusConfirmed
	writesBefore := store.writes
	_, err = coord.Write(context.Background(), Mutation{Appointment: mutated, Observed: stored.UpdatedAt})

	var se *SyncError
	require.True(t, errors.As(err, &se))
	require.Equal(t, SyncStaleWrite, se.Reason)
	require.Equal(t, writesBefore+1, store.writes, "stale writes must not be retried")
}

func TestWriteCancellationRollsBack(t *testing.T) {
	store := newFakeStorage()
	store.failWrites = 100
	coord, cache := newTestCoordinator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.Write(ctx, Mutation{Appointment: pendingAppt("tmp-1"), Create: true})
	require.Error(t, err)
	require.Equal(t, 0, cache.Len(), "cancellation must not leave partial effects")
}

func TestRefreshPullsRemoteSet(t *testing.T) {
	store := newFakeStorage()
	seed, err := store.CreateAppointment(context.Background(), pendingAppt(""))
	require.NoError(t, err)

	coord, cache := newTestCoordinator(store)
	require.NoError(t, coord.Refresh(context.Background()))

	got, ok := cache.Get(seed.ID)
	require.True(t, ok)
	require.Equal(t, seed.Subject, got.Subject)
}

func TestRefreshRemoteWinsWhenNewer(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)

	// Remote moves ahead: a concurrent writer confirmed it.
	remote := store.appts[stored.ID].Clone()
	remote.Status = models.StatusConfirmed
	remote.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	store.appts[stored.ID] = remote

	require.NoError(t, coord.Refresh(context.Background()))
	got, _ := cache.Get(stored.ID)
	require.Equal(t, models.StatusConfirmed, got.Status)
}

func TestRefreshRePushesNewerLocal(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)

	// Local moves ahead of the pulled snapshot.
	local := stored.Clone()
	local.Subject = "System design deep dive"
	local.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	cache.Put(local)

	require.NoError(t, coord.Refresh(context.Background()))

	require.Equal(t, "System design deep dive", store.appts[stored.ID].Subject,
		"newer local row must be pushed to the store, not discarded")
	got, _ := cache.Get(stored.ID)
	require.Equal(t, "System design deep dive", got.Subject)
}

func TestRefreshKeepsNewerLocalWhenPushFails(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	stored, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)

	local := stored.Clone()
	local.Subject = "System design deep dive"
	local.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	cache.Put(local)
	store.rejectNext = staleWrite("appointment changed since it was last read")

	require.NoError(t, coord.Refresh(context.Background()))

	got, _ := cache.Get(stored.ID)
	require.Equal(t, "System design deep dive", got.Subject,
		"local row stays until a later refresh can push it")
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := newFakeStorage()
	coord, _ := newTestCoordinator(store)

	var calls int
	var lastSet []models.Appointment
	handle := coord.Subscribe(func(set []models.Appointment) {
		calls++
		lastSet = set
	})

	_, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, lastSet, 1)

	coord.Unsubscribe(handle)
	second := pendingAppt("")
	second.TimeSlot = "09:30"
	_, err = coord.Write(context.Background(), Mutation{Appointment: second, Create: true})
	require.NoError(t, err)
	require.Equal(t, 1, calls, "no notifications after unsubscribe")
}

func TestSubscriberMayWriteFromCallback(t *testing.T) {
	store := newFakeStorage()
	coord, cache := newTestCoordinator(store)

	// Notifications run with no internal locks held, so a subscriber
	// reacting to one change may commit another.
	var reentered bool
	coord.Subscribe(func([]models.Appointment) {
		if reentered {
			return
		}
		reentered = true
		follow := pendingAppt("")
		follow.TimeSlot = "09:30"
		_, err := coord.Write(context.Background(), Mutation{Appointment: follow, Create: true})
		require.NoError(t, err)
	})

	_, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt(""), Create: true})
	require.NoError(t, err)
	require.True(t, reentered)
	require.Equal(t, 2, cache.Len())
}

func TestFailedWriteDoesNotNotify(t *testing.T) {
	store := newFakeStorage()
	store.rejectNext = remoteRejected("slot already has a confirmed appointment")
	coord, _ := newTestCoordinator(store)

	var calls int
	coord.Subscribe(func([]models.Appointment) { calls++ })

	_, err := coord.Write(context.Background(), Mutation{Appointment: pendingAppt("tmp-1"), Create: true})
	require.Error(t, err)
	require.Equal(t, 0, calls, "a rolled-back write implies no visible change")
}

package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/models"
)

// Mutation is one appointment write bound for the authoritative store.
type Mutation struct {
	Appointment models.Appointment
	Create      bool
	// Observed is the UpdatedAt the caller read before mutating; the
	// store rejects the write as stale if it holds a newer row.
	Observed time.Time
}

// Subscription identifies one change listener.
type Subscription int

// Coordinator reconciles the local cache against the authoritative store.
// Every mutation is applied optimistically to the cache, confirmed
// remotely, and either replaced by the authoritative row or rolled back.
// The cache never keeps an optimistic write the store rejected.
type Coordinator struct {
	storage Storage
	cache   *Cache
	feed    *redis.Client
	logger  *zap.Logger

	maxRetries      uint64
	refreshInterval time.Duration

	// writeMu serializes mutations and refreshes; reads go straight to
	// the cache snapshot and never take this lock.
	writeMu sync.Mutex

	subMu   sync.Mutex
	subs    map[Subscription]func([]models.Appointment)
	nextSub Subscription
}

func NewCoordinator(storage Storage, cache *Cache, feed *redis.Client, logger *zap.Logger, maxRetries uint64, refreshInterval time.Duration) *Coordinator {
	return &Coordinator{
		storage:         storage,
		cache:           cache,
		feed:            feed,
		logger:          logger,
		maxRetries:      maxRetries,
		refreshInterval: refreshInterval,
		subs:            make(map[Subscription]func([]models.Appointment)),
	}
}

// Write applies m optimistically, confirms it against the store, and
// publishes the result. On any failure, including cancellation mid-flight,
// the cache entry is restored to its pre-mutation snapshot.
func (c *Coordinator) Write(ctx context.Context, m Mutation) (*models.Appointment, error) {
	stored, err := c.apply(ctx, m)
	if err != nil {
		return nil, err
	}
	c.notify()
	return stored, nil
}

func (c *Coordinator) apply(ctx context.Context, m Mutation) (*models.Appointment, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev, existed := c.cache.Get(m.Appointment.ID)
	c.cache.Put(m.Appointment)

	stored, err := c.push(ctx, m)
	if err != nil {
		c.cache.Restore(m.Appointment.ID, prev, existed)
		c.logger.Warn("write rolled back",
			zap.String("appointment_id", m.Appointment.ID),
			zap.Bool("create", m.Create),
			zap.Error(err))
		return nil, err
	}

	// The authoritative row wins over the optimistic guess, including a
	// server-assigned id.
	if stored.ID != m.Appointment.ID {
		c.cache.Delete(m.Appointment.ID)
	}
	c.cache.Put(stored)

	c.logger.Info("appointment synced",
		zap.String("appointment_id", stored.ID),
		zap.String("status", string(stored.Status)),
		zap.Bool("create", m.Create))

	return &stored, nil
}

// push sends the mutation remotely, retrying only unreachable-store
// failures with bounded backoff. RemoteRejected and StaleWrite mean the
// state changed meaningfully and are surfaced untouched.
func (c *Coordinator) push(ctx context.Context, m Mutation) (models.Appointment, error) {
	var stored models.Appointment
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if m.Create {
			stored, err = c.storage.CreateAppointment(ctx, m.Appointment)
		} else {
			stored, err = c.storage.UpdateAppointment(ctx, m.Appointment, m.Observed)
		}
		var se *SyncError
		if errors.As(err, &se) && se.Reason == SyncUnreachable {
			return retry.RetryableError(err)
		}
		return err
	})
	return stored, err
}

// Refresh re-pulls the authoritative set and merges it into the cache,
// last writer wins by UpdatedAt. Local rows newer than the pulled
// snapshot are re-pushed, not silently discarded; if the re-push fails
// they stay in the cache for the next round.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if err := c.reconcile(ctx); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) reconcile(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var remote []models.Appointment
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		remote, err = c.storage.ListAppointments(ctx)
		var se *SyncError
		if errors.As(err, &se) && se.Reason == SyncUnreachable {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	merged := make(map[string]models.Appointment, len(remote))
	for _, r := range remote {
		merged[r.ID] = r
	}

	for _, local := range c.cache.Snapshot() {
		r, ok := merged[local.ID]
		if ok && !local.UpdatedAt.After(r.UpdatedAt) {
			continue // remote is as new or newer, take it
		}
		m := Mutation{Appointment: local, Create: !ok, Observed: r.UpdatedAt}
		stored, err := c.push(ctx, m)
		if err != nil {
			// Keep the newer local row; the next refresh retries.
			merged[local.ID] = local
			c.logger.Warn("re-push of newer local row failed",
				zap.String("appointment_id", local.ID),
				zap.Error(err))
			continue
		}
		delete(merged, local.ID)
		merged[stored.ID] = stored
	}

	set := make([]models.Appointment, 0, len(merged))
	for _, a := range merged {
		set = append(set, a)
	}
	c.cache.ReplaceAll(set)
	return nil
}

// Subscribe registers fn to receive the full appointment set after every
// change that reaches the cache. Callbacks run synchronously on the
// goroutine that committed the change, after internal locks are released,
// so a callback may call back into the coordinator.
func (c *Coordinator) Subscribe(fn func([]models.Appointment)) Subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	handle := c.nextSub
	c.subs[handle] = fn
	return handle
}

func (c *Coordinator) Unsubscribe(handle Subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subs, handle)
}

func (c *Coordinator) notify() {
	c.subMu.Lock()
	fns := make([]func([]models.Appointment), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snapshot := c.cache.Snapshot()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// Run drives periodic refreshes and, when a redis client is present,
// refreshes on every change-feed event as well. Blocks until ctx ends.
func (c *Coordinator) Run(ctx context.Context) {
	var feedCh <-chan *redis.Message
	if c.feed != nil {
		pubsub := c.feed.Subscribe(ctx, FeedChannel)
		defer pubsub.Close()
		feedCh = pubsub.Channel()
	}

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-feedCh:
			if !ok {
				feedCh = nil
				continue
			}
		}
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("refresh failed", zap.Error(err))
		}
	}
}

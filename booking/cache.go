package booking

import (
	"sort"
	"sync"

	"github.com/mentorbook/booking-app/models"
)

// Cache is the local appointment set. It is owned by the sync coordinator
// and handed to it at construction; nothing else writes to it. Reads hand
// out deep copies so callers can never mutate a cached entry in place.
type Cache struct {
	mu   sync.RWMutex
	byID map[string]models.Appointment
}

func NewCache() *Cache {
	return &Cache{byID: make(map[string]models.Appointment)}
}

func (c *Cache) Get(id string) (models.Appointment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.byID[id]
	if !ok {
		return models.Appointment{}, false
	}
	return a.Clone(), true
}

func (c *Cache) Put(a models.Appointment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[a.ID] = a.Clone()
}

func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
}

// Restore puts back a pre-mutation snapshot: the entry if it existed,
// otherwise the absence of one.
func (c *Cache) Restore(id string, prev models.Appointment, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existed {
		c.byID[id] = prev.Clone()
	} else {
		delete(c.byID, id)
	}
}

// Snapshot returns all entries ordered by creation time, id as tie-break.
func (c *Cache) Snapshot() []models.Appointment {
	c.mu.RLock()
	out := make([]models.Appointment, 0, len(c.byID))
	for _, a := range c.byID {
		out = append(out, a.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ReplaceAll swaps in a freshly merged set.
func (c *Cache) ReplaceAll(set []models.Appointment) {
	next := make(map[string]models.Appointment, len(set))
	for _, a := range set {
		next[a.ID] = a.Clone()
	}
	c.mu.Lock()
	c.byID = next
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

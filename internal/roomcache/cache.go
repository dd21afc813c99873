// Package roomcache keeps a local view of who is in the room and where.
package roomcache

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// Occupant is one user present in the room.
type Occupant struct {
	// UserID is the stable gateway user id.
	UserID string
	// Username is the display handle at the time of the last update.
	Username string
	// Location is the last known floor position or anchor.
	Location protocol.Location
}

// Cache maps user ids to occupants.
// All methods are safe for concurrent use; in the client it is mutated only
// from the dispatch goroutine.
type Cache struct {
	mu        sync.RWMutex
	occupants map[string]Occupant
	loaded    bool
}

// New creates an empty, unloaded Cache.
func New() *Cache {
	return &Cache{occupants: make(map[string]Occupant)}
}

// SnapshotLoad merges a full room listing into the cache and marks it loaded.
// Occupants absent from the listing are kept.
//
// Postcondition: Loaded() is true and every listed user is present with the listed location.
func (c *Cache) SnapshotLoad(users []protocol.RoomUser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ru := range users {
		c.occupants[ru.User.ID] = Occupant{
			UserID:   ru.User.ID,
			Username: ru.User.Username,
			Location: ru.Location,
		}
	}
	c.loaded = true
}

// UpsertOnJoin records a joining user, replacing any earlier entry.
func (c *Cache) UpsertOnJoin(user protocol.User, loc protocol.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.occupants[user.ID] = Occupant{UserID: user.ID, Username: user.Username, Location: loc}
}

// RemoveOnLeave drops the user and reports whether they were present.
func (c *Cache) RemoveOnLeave(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.occupants[userID]; !ok {
		return false
	}
	delete(c.occupants, userID)
	return true
}

// UpdatePositionOnMove sets the location of a cached user. Moves for users the
// cache does not hold are ignored.
//
// Postcondition: Returns true iff the user was present and updated.
func (c *Cache) UpdatePositionOnMove(userID string, loc protocol.Location) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	occ, ok := c.occupants[userID]
	if !ok {
		return false
	}
	occ.Location = loc
	c.occupants[userID] = occ
	return true
}

// ByID returns the occupant with the given user id.
func (c *Cache) ByID(userID string) (Occupant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	occ, ok := c.occupants[userID]
	return occ, ok
}

// ByUsername finds an occupant by handle, ignoring case.
func (c *Cache) ByUsername(username string) (Occupant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return findByUsername(lo.Values(c.occupants), username)
}

// All returns every occupant ordered by username, then user id.
func (c *Cache) All() []Occupant {
	c.mu.RLock()
	all := lo.Values(c.occupants)
	c.mu.RUnlock()
	sortOccupants(all)
	return all
}

// Len returns the number of cached occupants.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.occupants)
}

// Loaded reports whether a snapshot has been applied.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func toOccupants(users []protocol.RoomUser) []Occupant {
	return lo.Map(users, func(ru protocol.RoomUser, _ int) Occupant {
		return Occupant{UserID: ru.User.ID, Username: ru.User.Username, Location: ru.Location}
	})
}

func findByUsername(occupants []Occupant, username string) (Occupant, bool) {
	return lo.Find(occupants, func(o Occupant) bool {
		return strings.EqualFold(o.Username, username)
	})
}

func sortOccupants(occupants []Occupant) {
	slices.SortFunc(occupants, func(a, b Occupant) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.UserID, b.UserID))
	})
}

package inbox

import "time"

// TakeoverCoordinator holds the client-side view of who controls each
// conversation: the automated agent (default) or a human operator for a
// bounded duration. It only caches server-confirmed state: commands go
// through the service, which talks to the upstream first and applies the
// result here on success. A failed command never flips local state.
type TakeoverCoordinator struct {
	statuses map[string]TakeoverStatus
}

func NewTakeoverCoordinator() *TakeoverCoordinator {
	return &TakeoverCoordinator{statuses: make(map[string]TakeoverStatus)}
}

// Status returns the cached state for a session. Absent means AI control.
// Expiry is never applied locally: the state stays active past ExpiresAt
// until the server says otherwise (takeover_ended push or a status check).
func (c *TakeoverCoordinator) Status(sessionID string) TakeoverStatus {
	return c.statuses[sessionID]
}

func (c *TakeoverCoordinator) SetActive(sessionID, takenBy string, expiresAt time.Time) {
	c.statuses[sessionID] = TakeoverStatus{Active: true, TakenBy: takenBy, ExpiresAt: expiresAt}
}

func (c *TakeoverCoordinator) SetInactive(sessionID string) {
	delete(c.statuses, sessionID)
}

// Replace overwrites the cache with an authoritative server answer.
func (c *TakeoverCoordinator) Replace(sessionID string, st TakeoverStatus) {
	if !st.Active {
		delete(c.statuses, sessionID)
		return
	}
	c.statuses[sessionID] = st
}

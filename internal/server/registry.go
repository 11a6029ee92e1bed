package server

// Registry maps a participant id to their current live connection. It is
// owned exclusively by the ChatServer event loop, so no locking is
// required: every mutation happens within a single loop iteration.
type Registry struct {
	clients map[int]*Client
}

func newRegistry() *Registry {
	return &Registry{
		clients: make(map[int]*Client),
	}
}

// Register records c as the participant's live connection. The last
// connect wins: any previously registered connection is returned so the
// caller can shut it down.
func (r *Registry) Register(userId int, c *Client) *Client {
	displaced := r.clients[userId]
	if displaced == c {
		return nil
	}

	r.clients[userId] = c
	return displaced
}

func (r *Registry) Lookup(userId int) (*Client, bool) {
	c, ok := r.clients[userId]
	return c, ok
}

// Unregister removes the participant's entry only when it still maps to
// c, so a stale disconnect never evicts a fresh connection. It reports
// whether an entry was removed and is a no-op for unknown participants.
func (r *Registry) Unregister(userId int, c *Client) bool {
	if cur, ok := r.clients[userId]; ok && cur == c {
		delete(r.clients, userId)
		return true
	}

	return false
}

func (r *Registry) Size() int {
	return len(r.clients)
}

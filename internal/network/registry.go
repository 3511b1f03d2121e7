package network

// TransportHandle is the non-blocking, best-effort send contract spec.md
// §4.2 requires of C2's entries: "accepts send(frame) which is non-blocking
// and may fail; failures are logged but not retried".
type TransportHandle interface {
	Send(frame []byte) error
}

// ClientRegistry is C2: live connections keyed by ClientID, plus the
// display username used only to populate room-state broadcasts. It is
// exclusively owned and mutated by the Topology Engine's single-writer
// goroutine (§5), so it carries no internal locking.
type ClientRegistry struct {
	handles   map[ClientID]TransportHandle
	usernames map[ClientID]string
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		handles:   make(map[ClientID]TransportHandle),
		usernames: make(map[ClientID]string),
	}
}

// Add inserts id, overwriting any prior entry (spec.md §4.2).
func (r *ClientRegistry) Add(id ClientID, handle TransportHandle) {
	r.handles[id] = handle
}

// Remove drops id's connection entry and any stored username.
func (r *ClientRegistry) Remove(id ClientID) {
	delete(r.handles, id)
	delete(r.usernames, id)
}

// Has reports whether id is currently registered.
func (r *ClientRegistry) Has(id ClientID) bool {
	_, ok := r.handles[id]
	return ok
}

// Get returns id's transport handle, if any.
func (r *ClientRegistry) Get(id ClientID) (TransportHandle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// SetUsername stores username verbatim for id.
func (r *ClientRegistry) SetUsername(id ClientID, username string) {
	r.usernames[id] = username
}

// Username returns id's stored display name, or "guest" if unset (matching
// the original Rust's `usernames.get(id).unwrap_or(&"guest".to_owned())`).
func (r *ClientRegistry) Username(id ClientID) string {
	if name, ok := r.usernames[id]; ok {
		return name
	}
	return "guest"
}

// IDsForUsername returns every currently-connected client whose stored
// username matches, used by C8's send_invite to push a notification frame
// to every live client logged in as the invite's recipient (spec.md §4.6).
func (r *ClientRegistry) IDsForUsername(username string) []ClientID {
	var ids []ClientID
	for id, name := range r.usernames {
		if name == username {
			ids = append(ids, id)
		}
	}
	return ids
}

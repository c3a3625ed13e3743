// Package registry tracks the live, authenticated chat sessions and
// implements fan-out delivery.
//
// One Registry exists per server process and is the only state shared
// across connection goroutines.  Every operation runs under a single
// mutex; the critical sections only snapshot or reconcile the map, and
// actual deliveries happen outside the lock against session outboxes
// that never block on the network.
package registry

import (
	"errors"
	"sort"
	"sync"

	"gochat/internal/session"
)

var (
	// ErrNameTaken means the username is already registered to a live
	// session.
	ErrNameTaken = errors.New("username taken")

	// ErrNotFound means no session holds the username.
	ErrNotFound = errors.New("user not found")
)

// Registry maps usernames to their sessions' delivery capability.
// Invariant: a key exists iff exactly one live authenticated session
// holds that name.
type Registry struct {
	mu      sync.Mutex
	members map[string]*session.Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{members: make(map[string]*session.Session)}
}

// Register claims name for s.  Exactly one caller wins a concurrent
// race for the same name; the rest get ErrNameTaken.
func (r *Registry) Register(name string, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.members[name]; taken {
		return ErrNameTaken
	}
	r.members[name] = s
	return nil
}

// Unregister removes name if it is still held by owner, and reports
// whether an entry was removed.  The owner guard keeps a late cleanup
// from evicting a newcomer who re-claimed the name in the meantime.
// A nil owner removes unconditionally.
func (r *Registry) Unregister(name string, owner *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[name]
	if !ok {
		return false
	}
	if owner != nil && cur != owner {
		return false
	}
	delete(r.members, name)
	return true
}

// Len returns the current membership count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Snapshot returns the registered usernames, sorted, as of the call.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// ── Delivery ─────────────────────────────────────────────────────────

// Broadcast delivers frame to every member except exclude.  Delivery
// is best-effort per recipient: a failed recipient never aborts the
// rest of the fan-out, and anyone whose send fails is treated as
// disconnected and removed from the registry in the same pass.
// It returns how many recipients accepted the frame and the usernames
// removed as broken.
func (r *Registry) Broadcast(frame []byte, exclude string) (delivered int, removed []string) {
	type recipient struct {
		name string
		sess *session.Session
	}

	r.mu.Lock()
	targets := make([]recipient, 0, len(r.members))
	for name, s := range r.members {
		if name == exclude {
			continue
		}
		targets = append(targets, recipient{name, s})
	}
	r.mu.Unlock()

	var failed []recipient
	for _, t := range targets {
		if err := t.sess.Send(frame); err != nil {
			failed = append(failed, t)
			continue
		}
		delivered++
	}

	// Second short critical section: reconcile broken recipients.
	for _, t := range failed {
		if r.Unregister(t.name, t.sess) {
			removed = append(removed, t.name)
		}
		t.sess.Close()
	}
	return delivered, removed
}

// SendTo delivers frame to a single member.  It returns ErrNotFound if
// name is not registered; on a delivery failure the broken session is
// removed from the registry and the send error is returned.
func (r *Registry) SendTo(name string, frame []byte) error {
	r.mu.Lock()
	s, ok := r.members[name]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := s.Send(frame); err != nil {
		r.Unregister(name, s)
		s.Close()
		return err
	}
	return nil
}

// CloseAll closes every member's session and empties the registry.
// Used during process shutdown (close-and-let-fail, no draining of
// in-flight commands).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.members))
	for _, s := range r.members {
		sessions = append(sessions, s)
	}
	r.members = make(map[string]*session.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

package registry

import (
	"bufio"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"gochat/internal/session"
)

// newMember returns a registered session whose client side is drained
// into the returned channel, one line at a time.
func newMember(t *testing.T, r *Registry, name string) (*session.Session, <-chan string) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	s := session.New(server, 32, time.Second)
	t.Cleanup(s.Close)

	if err := r.Register(name, s); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	return s, lines
}

// newBrokenMember returns a registered session whose peer is already
// gone, so every delivery to it fails.
func newBrokenMember(t *testing.T, r *Registry, name string) *session.Session {
	t.Helper()
	client, server := net.Pipe()
	s := session.New(server, 1, 10*time.Millisecond)
	if err := r.Register(name, s); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	client.Close()
	// Poke the session until it notices the dead peer.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.Send([]byte("probe\n")) != nil {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never noticed the dead peer")
	return nil
}

func expectLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	select {
	case got := <-lines:
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// ── Registration ─────────────────────────────────────────────────────

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	a, _ := newMember(t, r, "alice")

	if err := r.Register("alice", a); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate register = %v, want ErrNameTaken", err)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

// TestRegisterRace verifies that exactly one of many concurrent claims
// on the same name wins.
func TestRegisterRace(t *testing.T) {
	r := New()

	const contenders = 32
	var wg sync.WaitGroup
	wins := make(chan int, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, server := net.Pipe()
			s := session.New(server, 4, time.Second)
			defer s.Close()
			if r.Register("highlander", s) == nil {
				wins <- 1
			}
		}()
	}
	wg.Wait()
	close(wins)

	total := 0
	for range wins {
		total++
	}
	if total != 1 {
		t.Fatalf("%d sessions won the name, want exactly 1", total)
	}
}

func TestUnregisterOwnerGuard(t *testing.T) {
	r := New()
	old, _ := newMember(t, r, "alice")

	// Simulate a timeout cleanup racing a re-login: the name was
	// already re-claimed by a new session.
	r.Unregister("alice", old)
	fresh, _ := newMember(t, r, "alice")

	if r.Unregister("alice", old) {
		t.Fatal("stale owner evicted the fresh session")
	}
	if !r.Unregister("alice", fresh) {
		t.Fatal("fresh owner could not unregister")
	}
	if r.Unregister("alice", fresh) {
		t.Fatal("second unregister reported a removal")
	}
}

func TestSnapshotSorted(t *testing.T) {
	r := New()
	for _, name := range []string{"mallory", "alice", "bob"} {
		newMember(t, r, name)
	}

	got := r.Snapshot()
	if len(got) != 3 || !sort.StringsAreSorted(got) {
		t.Fatalf("snapshot = %v, want 3 sorted names", got)
	}
	if strings.Join(got, ",") != "alice,bob,mallory" {
		t.Fatalf("snapshot = %v", got)
	}
}

// ── Delivery ─────────────────────────────────────────────────────────

func TestBroadcastExcludesSender(t *testing.T) {
	r := New()
	_, aliceLines := newMember(t, r, "alice")
	_, bobLines := newMember(t, r, "bob")

	delivered, removed := r.Broadcast([]byte("MSG alice hi\n"), "alice")
	if delivered != 1 || len(removed) != 0 {
		t.Fatalf("delivered=%d removed=%v, want 1 and none", delivered, removed)
	}

	expectLine(t, bobLines, "MSG alice hi")

	select {
	case got := <-aliceLines:
		t.Fatalf("sender received its own broadcast: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastRemovesBrokenRecipient(t *testing.T) {
	r := New()
	_, bobLines := newMember(t, r, "bob")
	newBrokenMember(t, r, "carol")

	delivered, removed := r.Broadcast([]byte("MSG alice hi\n"), "alice")
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(removed) != 1 || removed[0] != "carol" {
		t.Fatalf("removed = %v, want [carol]", removed)
	}

	expectLine(t, bobLines, "MSG alice hi")

	if got := r.Snapshot(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("registry after self-heal = %v, want [bob]", got)
	}
}

func TestSendTo(t *testing.T) {
	r := New()
	_, carolLines := newMember(t, r, "carol")

	if err := r.SendTo("carol", []byte("DM dave hi\n")); err != nil {
		t.Fatalf("sendTo: %v", err)
	}
	expectLine(t, carolLines, "DM dave hi")

	if err := r.SendTo("nobody", []byte("DM dave hi\n")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sendTo missing user = %v, want ErrNotFound", err)
	}
}

func TestSendToBrokenRemovesTarget(t *testing.T) {
	r := New()
	newBrokenMember(t, r, "carol")

	err := r.SendTo("carol", []byte("DM dave hi\n"))
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("sendTo broken target = %v, want a delivery error", err)
	}
	if r.Len() != 0 {
		t.Fatalf("broken target still registered, len = %d", r.Len())
	}
}

func TestCloseAll(t *testing.T) {
	r := New()
	a, _ := newMember(t, r, "alice")
	b, _ := newMember(t, r, "bob")

	r.CloseAll()

	if r.Len() != 0 {
		t.Fatalf("registry not emptied, len = %d", r.Len())
	}
	for _, s := range []*session.Session{a, b} {
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("session not closed by CloseAll")
		}
	}
}

package library

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"testing"

	"catlibrary/pkg/domain"
)

func TestOperatorIsSeeded(t *testing.T) {
	lib := New()
	nick, ok := lib.GuestByAddr(Operator)
	if !ok || nick != DefaultOperatorNick {
		t.Fatalf("operator nick = %q (found %v), want %q", nick, ok, DefaultOperatorNick)
	}
}

func TestWithOperator(t *testing.T) {
	addr := netip.MustParseAddr("::1")
	lib := New(WithOperator(addr, "keeper"))
	if nick, ok := lib.GuestByAddr(addr); !ok || nick != "keeper" {
		t.Fatalf("operator nick = %q, want keeper", nick)
	}
	if _, ok := lib.GuestByAddr(Operator); ok {
		t.Fatalf("default operator should not be registered")
	}
}

func TestAddGuest(t *testing.T) {
	lib := New()
	nick, err := lib.AddGuest(guestA, "alice")
	if err != nil || nick != "alice" {
		t.Fatalf("AddGuest = %q, %v", nick, err)
	}
	if got, ok := lib.GuestByAddr(guestA); !ok || got != "alice" {
		t.Fatalf("GuestByAddr = %q, want alice", got)
	}
	if _, ok := lib.GuestByAddr(guestB); ok {
		t.Fatalf("unregistered guest resolved")
	}
}

func TestAddGuestNicknameTaken(t *testing.T) {
	lib := New()
	if _, err := lib.AddGuest(guestA, "alice"); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := lib.AddGuest(guestB, "alice"); !errors.Is(err, ErrNicknameTaken) {
		t.Fatalf("add b err = %v, want ErrNicknameTaken", err)
	}
	if _, ok := lib.GuestByAddr(guestB); ok {
		t.Fatalf("failed registration must not register the address")
	}
	if _, err := lib.AddGuest(guestB, "bob"); err != nil {
		t.Fatalf("add b with free nick: %v", err)
	}
}

func TestAddGuestAlreadyRegistered(t *testing.T) {
	lib := New()
	if _, err := lib.AddGuest(guestA, "alice"); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := lib.AddGuest(guestA, "alice"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("re-add same pair err = %v, want ErrAlreadyRegistered", err)
	}
	if _, err := lib.AddGuest(guestA, "alicia"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("re-add new nick err = %v, want ErrAlreadyRegistered", err)
	}
	// The rejected nickname stays available.
	if _, err := lib.AddGuest(guestB, "alicia"); err != nil {
		t.Fatalf("add b as alicia: %v", err)
	}
	if lib.GuestCount() != 3 {
		t.Fatalf("GuestCount() = %d, want 3", lib.GuestCount())
	}
}

func TestAddGuestRejectsInvalidInput(t *testing.T) {
	lib := New()
	if _, err := lib.AddGuest(guestA, ""); !errors.Is(err, ErrEmptyNickname) {
		t.Fatalf("empty nick err = %v", err)
	}
	if _, err := lib.AddGuest(netip.Addr{}, "x"); !errors.Is(err, ErrInvalidAddr) {
		t.Fatalf("zero addr err = %v", err)
	}
}

func TestConcurrentAddGuestKeepsDirectoryUnique(t *testing.T) {
	lib := New()
	const workers = 24
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// pairs collide on both address and nickname
			addr := netip.AddrFrom4([4]byte{10, 1, 0, byte(i % 8)})
			nick := fmt.Sprintf("guest-%d", i%5)
			_, _ = lib.AddGuest(addr, nick)
		}()
	}
	wg.Wait()

	lib.guestMu.RLock()
	defer lib.guestMu.RUnlock()
	if len(lib.guestByAddr) != len(lib.guestByNick) {
		t.Fatalf("views disagree: %d addrs, %d nicks", len(lib.guestByAddr), len(lib.guestByNick))
	}
	if !slices.IsSortedFunc(lib.guestByAddr, func(a, b domain.Guest) int { return a.Addr.Compare(b.Addr) }) {
		t.Fatalf("address view not sorted")
	}
	if !slices.IsSortedFunc(lib.guestByNick, func(a, b domain.Guest) int { return strings.Compare(a.Nick, b.Nick) }) {
		t.Fatalf("nickname view not sorted")
	}
	addrs := make(map[netip.Addr]string)
	nicks := make(map[string]netip.Addr)
	for _, g := range lib.guestByAddr {
		if _, dup := addrs[g.Addr]; dup {
			t.Fatalf("duplicate address %v", g.Addr)
		}
		if _, dup := nicks[g.Nick]; dup {
			t.Fatalf("duplicate nickname %q", g.Nick)
		}
		addrs[g.Addr] = g.Nick
		nicks[g.Nick] = g.Addr
	}
	for _, g := range lib.guestByNick {
		if addrs[g.Addr] != g.Nick {
			t.Fatalf("pairing mismatch for %v: %q vs %q", g.Addr, addrs[g.Addr], g.Nick)
		}
	}
}

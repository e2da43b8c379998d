package library

import (
	"net/netip"
	"slices"
	"strings"

	"catlibrary/pkg/domain"
)

func compareAddr(g domain.Guest, addr netip.Addr) int {
	return g.Addr.Compare(addr)
}

func compareNick(g domain.Guest, nick string) int {
	return strings.Compare(g.Nick, nick)
}

// GuestByAddr returns the nickname registered for addr.
func (l *Library) GuestByAddr(addr netip.Addr) (string, bool) {
	l.guestMu.RLock()
	defer l.guestMu.RUnlock()
	idx, found := slices.BinarySearchFunc(l.guestByAddr, addr, compareAddr)
	if !found {
		return "", false
	}
	return l.guestByAddr[idx].Nick, true
}

// GuestCount returns the number of registered guests, operator included.
func (l *Library) GuestCount() int {
	l.guestMu.RLock()
	defer l.guestMu.RUnlock()
	return len(l.guestByAddr)
}

// AddGuest registers nick for addr. The nickname is checked first; nothing
// is written unless both the nickname and the address are free.
func (l *Library) AddGuest(addr netip.Addr, nick string) (string, error) {
	if !addr.IsValid() {
		return "", ErrInvalidAddr
	}
	if nick == "" {
		return "", ErrEmptyNickname
	}
	l.guestMu.Lock()
	defer l.guestMu.Unlock()

	nickIdx, nickFound := slices.BinarySearchFunc(l.guestByNick, nick, compareNick)
	if nickFound && l.guestByNick[nickIdx].Addr != addr {
		return "", ErrNicknameTaken
	}
	addrIdx, addrFound := slices.BinarySearchFunc(l.guestByAddr, addr, compareAddr)
	if addrFound {
		return "", ErrAlreadyRegistered
	}

	guest := domain.Guest{Addr: addr, Nick: nick}
	l.guestByNick = slices.Insert(l.guestByNick, nickIdx, guest)
	l.guestByAddr = slices.Insert(l.guestByAddr, addrIdx, guest)
	return nick, nil
}

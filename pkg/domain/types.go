package domain

import (
	"net/netip"
	"time"
)

// BookID is the insertion index of a book in the library pool.
// Once issued it always resolves to the same book.
type BookID int

// Book is an immutable library entry. Content holds newline-terminated lines.
type Book struct {
	Title       string `yaml:"title" json:"title"`
	Author      string `yaml:"author" json:"author"`
	Description string `yaml:"description" json:"description"`
	Content     string `yaml:"content" json:"content"`
}

// Metadata is the mutable state tracked for each book.
// CheckedOutBy is the zero Addr while the book is available.
type Metadata struct {
	AddedBy      netip.Addr
	Checkouts    uint64
	CheckedOutBy netip.Addr
}

// NewMetadata returns fresh metadata for a book contributed by addedBy.
func NewMetadata(addedBy netip.Addr) Metadata {
	return Metadata{AddedBy: addedBy}
}

// IsFree reports whether nobody holds the book.
func (m Metadata) IsFree() bool {
	return !m.CheckedOutBy.IsValid()
}

// SetCheckout marks the book as held by guest and bumps the saturating
// checkout counter.
func (m *Metadata) SetCheckout(guest netip.Addr) {
	m.CheckedOutBy = guest
	if m.Checkouts < ^uint64(0) {
		m.Checkouts++
	}
}

// SetCheckin releases the book.
func (m *Metadata) SetCheckin() {
	m.CheckedOutBy = netip.Addr{}
}

// Guest binds a network address to a public nickname.
type Guest struct {
	Addr netip.Addr
	Nick string
}

// SearchResult is one ranked hit of a library search.
type SearchResult struct {
	Score float64
	ID    BookID
	Meta  Metadata
}

// Checkout is a book currently held by a guest.
type Checkout struct {
	ID   BookID
	Meta Metadata
}

type EventKind string

const (
	EventGuestRegistered EventKind = "guest.registered"
	EventBookAdded       EventKind = "book.added"
	EventBookCheckedOut  EventKind = "book.checked_out"
	EventBookCheckedIn   EventKind = "book.checked_in"
)

// Event describes a library state change for activity consumers.
type Event struct {
	Kind      EventKind `json:"kind"`
	Guest     string    `json:"guest"`
	Nick      string    `json:"nick,omitempty"`
	BookID    BookID    `json:"bookId"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

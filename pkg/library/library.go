package library

import (
	"net/netip"
	"slices"
	"sync"

	"catlibrary/pkg/domain"
	"catlibrary/pkg/similarity"
)

// DefaultOperatorNick is the nickname seeded for the operator address.
const DefaultOperatorNick = "cat in the machine"

// Operator is the loopback address the operator guest is bound to.
var Operator = netip.AddrFrom4([4]byte{127, 0, 0, 1})

type Options struct {
	Scorer       similarity.Scorer
	OperatorAddr netip.Addr
	OperatorNick string
}

type Option func(*Options)

// WithScorer replaces the whole-field similarity used by Search.
func WithScorer(scorer similarity.Scorer) Option {
	return func(opts *Options) {
		opts.Scorer = scorer
	}
}

// WithOperator binds the seeded operator guest to addr and nick.
func WithOperator(addr netip.Addr, nick string) Option {
	return func(opts *Options) {
		opts.OperatorAddr = addr
		opts.OperatorNick = nick
	}
}

// Library is the shared in-memory book repository.
//
// The book pool is append-only under a single RWMutex, so an index read under
// the read lock stays valid forever. Metadata lives in a sharded table with
// per-shard locks. The guest directory keeps two sorted views (by address
// and by nickname) behind one RWMutex so both always agree.
type Library struct {
	poolMu sync.RWMutex
	pool   []domain.Book

	meta *metaTable

	guestMu     sync.RWMutex
	guestByAddr []domain.Guest
	guestByNick []domain.Guest

	scorer   similarity.Scorer
	operator domain.Guest
}

// New returns an empty library with the operator guest registered.
func New(options ...Option) *Library {
	opts := Options{
		Scorer:       similarity.WithCutoff(SearchThreshold),
		OperatorAddr: Operator,
		OperatorNick: DefaultOperatorNick,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	operator := domain.Guest{Addr: opts.OperatorAddr, Nick: opts.OperatorNick}
	return &Library{
		meta:        newMetaTable(),
		guestByAddr: []domain.Guest{operator},
		guestByNick: []domain.Guest{operator},
		scorer:      opts.Scorer,
		operator:    operator,
	}
}

// WithCollection returns a new library holding books, all contributed by the
// operator, in order.
func WithCollection(books []domain.Book, options ...Option) *Library {
	lib := New(options...)
	for _, book := range books {
		lib.AddBook(book, lib.Operator().Addr)
	}
	return lib
}

// Operator returns the seeded operator guest.
func (l *Library) Operator() domain.Guest {
	return l.operator
}

// Len returns the number of books in the pool.
func (l *Library) Len() int {
	l.poolMu.RLock()
	defer l.poolMu.RUnlock()
	return len(l.pool)
}

// AddBook appends book to the pool and returns its new BookID.
func (l *Library) AddBook(book domain.Book, contributor netip.Addr) domain.BookID {
	l.poolMu.Lock()
	defer l.poolMu.Unlock()
	id := domain.BookID(len(l.pool))
	l.pool = append(l.pool, book)
	if !l.meta.insert(id, domain.NewMetadata(contributor)) {
		panic("library: metadata already present for new book id")
	}
	return id
}

// Book returns the book issued under id.
func (l *Library) Book(id domain.BookID) (domain.Book, bool) {
	l.poolMu.RLock()
	defer l.poolMu.RUnlock()
	if id < 0 || int(id) >= len(l.pool) {
		return domain.Book{}, false
	}
	return l.pool[id], true
}

// Metadata returns a snapshot of the metadata for id.
func (l *Library) Metadata(id domain.BookID) (domain.Metadata, bool) {
	return l.meta.get(id)
}

// Checkout marks id as held by guest. A held book yields a *CheckedOutError
// naming the current holder.
func (l *Library) Checkout(id domain.BookID, guest netip.Addr) error {
	if !guest.IsValid() {
		return ErrInvalidAddr
	}
	return l.meta.update(id, func(m *domain.Metadata) error {
		if !m.IsFree() {
			return &CheckedOutError{By: m.CheckedOutBy}
		}
		m.SetCheckout(guest)
		return nil
	})
}

// Checkin releases id if guest currently holds it.
func (l *Library) Checkin(id domain.BookID, guest netip.Addr) error {
	return l.meta.update(id, func(m *domain.Metadata) error {
		if m.IsFree() {
			return ErrAlreadyCheckedIn
		}
		if m.CheckedOutBy != guest {
			return ErrGuestMismatch
		}
		m.SetCheckin()
		return nil
	})
}

// CheckoutsByGuest lists the books currently held by guest, by BookID.
func (l *Library) CheckoutsByGuest(guest netip.Addr) []domain.Checkout {
	if !guest.IsValid() {
		return nil
	}
	var found []domain.Checkout
	l.meta.each(func(id domain.BookID, m domain.Metadata) {
		if m.CheckedOutBy == guest {
			found = append(found, domain.Checkout{ID: id, Meta: m})
		}
	})
	slices.SortFunc(found, func(a, b domain.Checkout) int {
		return int(a.ID) - int(b.ID)
	})
	return found
}

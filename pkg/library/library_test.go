package library

import (
	"errors"
	"net/netip"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"catlibrary/pkg/domain"
)

var (
	guestA = netip.MustParseAddr("192.0.2.10")
	guestB = netip.MustParseAddr("192.0.2.11")
)

func fooBook() domain.Book {
	return domain.Book{Title: "foo", Author: "cat 1", Description: "bar", Content: "baz"}
}

func TestAddAndSearch(t *testing.T) {
	lib := New()
	id := lib.AddBook(fooBook(), Operator)

	want := []domain.SearchResult{{Score: 1.0, ID: id, Meta: domain.NewMetadata(Operator)}}
	if got := lib.Search(""); !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(\"\") = %+v, want %+v", got, want)
	}
	if got := lib.Search("foo"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(\"foo\") = %+v, want %+v", got, want)
	}
}

func TestAddManyKeepsPoolOrderOnTies(t *testing.T) {
	lib := New()
	var want []domain.SearchResult
	for j := 0; j < 3; j++ {
		id := lib.AddBook(fooBook(), Operator)
		meta, ok := lib.Metadata(id)
		if !ok {
			t.Fatalf("metadata missing for %d", id)
		}
		want = append(want, domain.SearchResult{Score: 1.0, ID: id, Meta: meta})
		if got := lib.Search(""); !reflect.DeepEqual(got, want) {
			t.Fatalf("Search(\"\") = %+v, want %+v", got, want)
		}
	}

	other := fooBook()
	other.Content = "haha!"
	id := lib.AddBook(other, Operator)
	got := lib.Search("haha!")
	want = []domain.SearchResult{{Score: 1.0, ID: id, Meta: domain.NewMetadata(Operator)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(\"haha!\") = %+v, want %+v", got, want)
	}
}

func TestSearchExcludesUnrelatedBooks(t *testing.T) {
	lib := New()
	lib.AddBook(fooBook(), Operator)
	if got := lib.Search("zzzzzzzzzzqqqq"); len(got) != 0 {
		t.Fatalf("Search(unrelated) = %+v, want none", got)
	}
}

func TestSearchRanksByScore(t *testing.T) {
	lib := New()
	weak := lib.AddBook(domain.Book{Title: "a tale of two kittens", Author: "x", Description: "y", Content: "z"}, Operator)
	strong := lib.AddBook(domain.Book{Title: "kittens", Author: "x", Description: "y", Content: "z"}, Operator)

	got := lib.Search("kittens")
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	// "a tale of two kittens" has containment density 21/7 = 3.
	if got[0].ID != weak || got[1].ID != strong {
		t.Fatalf("order = [%d %d], want [%d %d]", got[0].ID, got[1].ID, weak, strong)
	}
	if got[0].Score != 3.0 {
		t.Fatalf("top score = %f, want 3", got[0].Score)
	}
}

func TestSearchUsesScorer(t *testing.T) {
	lib := New(WithScorer(func(query, field string) float64 {
		if field == "bar" {
			return 0.5
		}
		return 0
	}))
	id := lib.AddBook(fooBook(), Operator)
	got := lib.Search("nothing like it")
	if len(got) != 1 || got[0].ID != id || got[0].Score != 0.5 {
		t.Fatalf("Search() = %+v, want one hit with score 0.5", got)
	}
}

func TestContainment(t *testing.T) {
	tests := []struct {
		query, field string
		want         float64
	}{
		{"foo", "foo", 1.0},
		{"foo", "bar", 0},
		{"ab", "abab", 1.0},
		{"aa", "aaa", 1.5},
		{"foo", "foo bar", 7.0 / 3.0},
		// field length is in bytes, query length in runes
		{"é", "ééé", 2.0},
		{"猫", "猫", 3.0},
	}
	for _, tt := range tests {
		if got := containment(tt.query, tt.field); got != tt.want {
			t.Fatalf("containment(%q, %q) = %f, want %f", tt.query, tt.field, got, tt.want)
		}
	}
}

func TestCheckoutAndCheckin(t *testing.T) {
	lib := New()
	id := lib.AddBook(fooBook(), Operator)

	if err := lib.Checkout(id, Operator); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	err := lib.Checkout(id, Operator)
	var held *CheckedOutError
	if !errors.As(err, &held) || held.By != Operator {
		t.Fatalf("second checkout err = %v, want CheckedOutError by operator", err)
	}
	if !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Fatalf("second checkout err = %v, want ErrAlreadyCheckedOut", err)
	}
	if err := lib.Checkin(id, Operator); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if err := lib.Checkin(id, Operator); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second checkin err = %v, want ErrAlreadyCheckedIn", err)
	}
	if err := lib.Checkout(id, Operator); err != nil {
		t.Fatalf("checkout again: %v", err)
	}
	meta, _ := lib.Metadata(id)
	if meta.Checkouts != 2 {
		t.Fatalf("checkouts = %d, want 2", meta.Checkouts)
	}
}

func TestCheckinGuestMismatch(t *testing.T) {
	lib := New()
	id := lib.AddBook(fooBook(), Operator)
	if err := lib.Checkout(id, guestA); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := lib.Checkin(id, guestB); !errors.Is(err, ErrGuestMismatch) {
		t.Fatalf("checkin by other guest err = %v, want ErrGuestMismatch", err)
	}
	meta, _ := lib.Metadata(id)
	if meta.CheckedOutBy != guestA {
		t.Fatalf("holder = %v, want %v", meta.CheckedOutBy, guestA)
	}
}

func TestUnknownBook(t *testing.T) {
	lib := New()
	if err := lib.Checkout(7, guestA); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("checkout unknown err = %v, want ErrBookNotFound", err)
	}
	if err := lib.Checkin(7, guestA); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("checkin unknown err = %v, want ErrBookNotFound", err)
	}
	if _, ok := lib.Book(7); ok {
		t.Fatalf("Book(7) found in empty library")
	}
	if _, ok := lib.Book(-1); ok {
		t.Fatalf("Book(-1) found")
	}
}

func TestEndToEndScenario(t *testing.T) {
	lib := New()
	if _, err := lib.AddGuest(guestA, "alice"); err != nil {
		t.Fatalf("add guest a: %v", err)
	}
	if _, err := lib.AddGuest(guestB, "bob"); err != nil {
		t.Fatalf("add guest b: %v", err)
	}
	id := lib.AddBook(fooBook(), guestA)

	results := lib.Search("foo")
	if len(results) != 1 || results[0].ID != id || results[0].Score != 1.0 {
		t.Fatalf("Search(\"foo\") = %+v, want one hit at 1.0", results)
	}
	if err := lib.Checkout(id, guestA); err != nil {
		t.Fatalf("checkout by a: %v", err)
	}
	var held *CheckedOutError
	if err := lib.Checkout(id, guestB); !errors.As(err, &held) || held.By != guestA {
		t.Fatalf("checkout by b err = %v, want held by a", err)
	}
	if nick, ok := lib.GuestByAddr(held.By); !ok || nick != "alice" {
		t.Fatalf("holder nick = %q, want alice", nick)
	}
	if err := lib.Checkin(id, guestA); err != nil {
		t.Fatalf("checkin by a: %v", err)
	}
	if err := lib.Checkin(id, guestA); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second checkin err = %v, want ErrAlreadyCheckedIn", err)
	}
}

func TestBookIDStability(t *testing.T) {
	lib := New()
	books := make([]domain.Book, 50)
	ids := make([]domain.BookID, len(books))
	for i := range books {
		books[i] = domain.Book{Title: string(rune('a' + i%26)), Content: "line\n"}
		ids[i] = lib.AddBook(books[i], guestA)
		if int(ids[i]) != i {
			t.Fatalf("id %d = %d, want dense ids", i, ids[i])
		}
	}
	for i, id := range ids {
		got, ok := lib.Book(id)
		if !ok || got != books[i] {
			t.Fatalf("Book(%d) = %+v, want %+v", id, got, books[i])
		}
	}
}

func TestConcurrentAddBookIssuesUniqueIDs(t *testing.T) {
	lib := New()
	const workers = 16
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[domain.BookID]domain.Book)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				book := domain.Book{Title: "t", Author: string(rune('A' + w)), Content: string(rune('a' + i%26))}
				id := lib.AddBook(book, guestA)
				mu.Lock()
				if _, dup := seen[id]; dup {
					mu.Unlock()
					t.Errorf("duplicate id %d", id)
					return
				}
				seen[id] = book
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if lib.Len() != workers*perWorker {
		t.Fatalf("Len() = %d, want %d", lib.Len(), workers*perWorker)
	}
	for id, book := range seen {
		if got, _ := lib.Book(id); got != book {
			t.Fatalf("Book(%d) = %+v, want %+v", id, got, book)
		}
	}
}

func TestConcurrentCheckoutIsExclusive(t *testing.T) {
	lib := New()
	id := lib.AddBook(fooBook(), Operator)

	const guests = 32
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < guests; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := netip.AddrFrom4([4]byte{10, 0, 0, byte(i + 1)})
			err := lib.Checkout(id, addr)
			if err == nil {
				winners.Add(1)
				return
			}
			if !errors.Is(err, ErrAlreadyCheckedOut) {
				t.Errorf("checkout err = %v, want ErrAlreadyCheckedOut", err)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("winners = %d, want 1", winners.Load())
	}
	meta, _ := lib.Metadata(id)
	if meta.Checkouts != 1 || meta.IsFree() {
		t.Fatalf("meta = %+v, want one checkout and held", meta)
	}
}

func TestCheckoutsByGuest(t *testing.T) {
	lib := New()
	first := lib.AddBook(fooBook(), Operator)
	lib.AddBook(fooBook(), Operator)
	third := lib.AddBook(fooBook(), Operator)

	for _, id := range []domain.BookID{third, first} {
		if err := lib.Checkout(id, guestA); err != nil {
			t.Fatalf("checkout %d: %v", id, err)
		}
	}
	got := lib.CheckoutsByGuest(guestA)
	if len(got) != 2 || got[0].ID != first || got[1].ID != third {
		t.Fatalf("CheckoutsByGuest = %+v, want books %d and %d", got, first, third)
	}
	if got := lib.CheckoutsByGuest(guestB); len(got) != 0 {
		t.Fatalf("CheckoutsByGuest(b) = %+v, want none", got)
	}
	if got := lib.CheckoutsByGuest(netip.Addr{}); len(got) != 0 {
		t.Fatalf("CheckoutsByGuest(zero) = %+v, want none", got)
	}
}

func TestWithCollection(t *testing.T) {
	lib := WithCollection([]domain.Book{fooBook(), fooBook()})
	if lib.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", lib.Len())
	}
	meta, _ := lib.Metadata(1)
	if meta.AddedBy != Operator {
		t.Fatalf("added by = %v, want operator", meta.AddedBy)
	}
}

func TestWithCollectionCreditsConfiguredOperator(t *testing.T) {
	addr := netip.MustParseAddr("::1")
	lib := WithCollection([]domain.Book{fooBook()}, WithOperator(addr, "keeper"))
	if op := lib.Operator(); op.Addr != addr || op.Nick != "keeper" {
		t.Fatalf("Operator() = %+v, want ::1 keeper", op)
	}
	meta, _ := lib.Metadata(0)
	if meta.AddedBy != addr {
		t.Fatalf("added by = %v, want %v", meta.AddedBy, addr)
	}
}

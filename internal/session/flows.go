package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catlibrary/internal/editor"
	"catlibrary/pkg/domain"
	"catlibrary/pkg/library"
)

const (
	searchPrompt = "search query? "
	rankPrompt   = "which item number? "

	// addTries is how many empty answers a field of the add flow tolerates.
	addTries = 2
)

func (s *Session) search() ([]domain.SearchResult, error) {
	query, err := s.stream.ReadLine(searchPrompt)
	if err != nil {
		return nil, err
	}
	results := s.lib.Search(query)
	if len(results) == 0 {
		if query == "" {
			s.stream.WriteString("the library is empty!\n")
		} else {
			s.stream.WriteString("no matching books!\n")
		}
	}
	return results, nil
}

func (s *Session) listEntries(entries []domain.SearchResult) {
	for i, entry := range entries {
		book, ok := s.lib.Book(entry.ID)
		if !ok {
			continue
		}
		presence := "[out]"
		if entry.Meta.IsFree() {
			presence = "[in] "
		}
		s.stream.Printf("%d. %s '%s', by %s.\n", i+1, presence, book.Title, book.Author)
	}
}

// chooseEntry lists entries and asks for one of them by rank. It returns the
// 0-based index of the choice, or false when nothing was chosen.
func (s *Session) chooseEntry(entries []domain.SearchResult) (int, bool, error) {
	s.listEntries(entries)
	return s.chooseRank(len(entries))
}

// chooseRank asks once for a 1-based rank in [1, n]. Bad input is reported
// and ends the choice; it is never asked again.
func (s *Session) chooseRank(n int) (int, bool, error) {
	if n == 0 {
		return 0, false, nil
	}
	input, err := s.stream.ReadLine(rankPrompt)
	if err != nil {
		return 0, false, err
	}
	if input == "" {
		return 0, false, nil
	}
	rank, err := strconv.ParseUint(input, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		s.stream.Printf("item number must be at most %d.\n", n)
		return 0, false, nil
	case err != nil:
		s.stream.Printf("%v.\n", err)
		return 0, false, nil
	case rank < 1:
		s.stream.WriteString("item number must be at least 1.\n")
		return 0, false, nil
	case rank > uint64(n):
		s.stream.Printf("item number must be at most %d.\n", n)
		return 0, false, nil
	}
	return int(rank) - 1, true, nil
}

func (s *Session) nevermind() error {
	s.stream.WriteString("nevermind.\n")
	return s.stream.Err()
}

func (s *Session) checkout(ctx context.Context) error {
	results, err := s.search()
	if err != nil {
		return err
	}
	index, ok, err := s.chooseEntry(results)
	if err != nil {
		return err
	}
	if !ok {
		return s.nevermind()
	}
	rank, id := index+1, results[index].ID

	var held *library.CheckedOutError
	err = s.lib.Checkout(id, s.addr)
	switch {
	case err == nil:
		s.stream.Printf("checked out item %d!\n", rank)
		s.logger.Info("checked out book", "book_id", int(id))
		s.publish(ctx, s.bookEvent(domain.EventBookCheckedOut, id))
	case errors.As(err, &held):
		s.stream.Printf("item %d is already checked out", rank)
		if nick, ok := s.lib.GuestByAddr(held.By); ok {
			s.stream.Printf(" by '%s'", nick)
		}
		s.stream.WriteString(".\n")
	default:
		return fmt.Errorf("checkout book %d: %w", id, err)
	}
	return s.stream.Err()
}

// heldEntries lists the guest's checkouts as selectable entries, or refuses
// when there are none.
func (s *Session) heldEntries() ([]domain.SearchResult, bool) {
	held := s.lib.CheckoutsByGuest(s.addr)
	if len(held) == 0 {
		s.stream.WriteString("check out some books first!\n")
		return nil, false
	}
	entries := make([]domain.SearchResult, len(held))
	for i, c := range held {
		entries[i] = domain.SearchResult{Score: 1, ID: c.ID, Meta: c.Meta}
	}
	return entries, true
}

func (s *Session) checkin(ctx context.Context) error {
	entries, ok := s.heldEntries()
	if !ok {
		return s.stream.Err()
	}
	index, ok, err := s.chooseEntry(entries)
	if err != nil {
		return err
	}
	if !ok {
		return s.nevermind()
	}
	rank, id := index+1, entries[index].ID

	err = s.lib.Checkin(id, s.addr)
	switch {
	case err == nil:
		s.stream.Printf("returned item %d.\n", rank)
		s.logger.Info("checked in book", "book_id", int(id))
		s.publish(ctx, s.bookEvent(domain.EventBookCheckedIn, id))
	case errors.Is(err, library.ErrAlreadyCheckedIn):
		s.stream.Printf("item %d is already checked in.\n", rank)
	case errors.Is(err, library.ErrGuestMismatch):
		s.stream.Printf("item %d is checked out by somebody else.\n", rank)
	default:
		return fmt.Errorf("checkin book %d: %w", id, err)
	}
	return s.stream.Err()
}

func (s *Session) read() error {
	entries, ok := s.heldEntries()
	if !ok {
		return s.stream.Err()
	}
	index, ok, err := s.chooseEntry(entries)
	if err != nil {
		return err
	}
	if !ok {
		return s.nevermind()
	}
	entry := entries[index]
	book, ok := s.lib.Book(entry.ID)
	if !ok {
		return fmt.Errorf("read book %d: %w", entry.ID, library.ErrBookNotFound)
	}
	s.coverPage(book, entry.Meta)

	lines := editor.SplitLines(book.Content)
	return editor.New(&lines, true).Run(s.stream)
}

func (s *Session) coverPage(book domain.Book, meta domain.Metadata) {
	s.stream.WriteString("\n")
	s.stream.Printf("\t'%s'\n", book.Title)
	s.stream.Printf("\t\tby %s\n", book.Author)
	if book.Description != "" {
		s.stream.WriteString("\n")
		for _, line := range editor.SplitLines(book.Description) {
			s.stream.Printf("\t%s\n", line)
		}
	}
	s.stream.WriteString("\n")
	plural := "s"
	if meta.Checkouts == 1 {
		plural = ""
	}
	s.stream.Printf("\t[Total %d checkout%s.]\n", meta.Checkouts, plural)
	if nick, ok := s.lib.GuestByAddr(meta.AddedBy); ok {
		s.stream.Printf("\t[Added by guest '%s'.]\n", nick)
	}
	s.stream.WriteString("\n")
}

func (s *Session) add(ctx context.Context) error {
	fields := []struct {
		prompt string
		value  string
	}{
		{prompt: "Title? "},
		{prompt: "Author? "},
		{prompt: "Description? "},
	}
	for i := range fields {
		for tries := 0; fields[i].value == ""; tries++ {
			if tries >= addTries {
				return s.nevermind()
			}
			value, err := s.stream.ReadLine(fields[i].prompt)
			if err != nil {
				return err
			}
			fields[i].value = value
		}
	}

	var lines []string
	if err := editor.New(&lines, false).Author(s.stream); err != nil {
		return err
	}
	book := domain.Book{
		Title:       fields[0].value,
		Author:      fields[1].value,
		Description: fields[2].value,
		Content:     editor.JoinLines(lines),
	}

	s.stream.Printf("adding the book '%s'...", book.Title)
	if err := s.stream.Flush(); err != nil {
		return err
	}
	id := s.lib.AddBook(book, s.addr)
	s.stream.WriteString("done!\n")
	s.logger.Info("added book", "book_id", int(id), "title", book.Title, "lines", len(lines))
	s.publish(ctx, s.bookEvent(domain.EventBookAdded, id))
	return s.stream.Err()
}

func (s *Session) bookEvent(kind domain.EventKind, id domain.BookID) domain.Event {
	event := domain.Event{Kind: kind, BookID: id}
	if book, ok := s.lib.Book(id); ok {
		event.Title = strings.TrimSpace(book.Title)
	}
	return event
}

package library

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"catlibrary/pkg/domain"
)

// SearchThreshold is the minimum relevance a book needs to be listed.
const SearchThreshold = 0.4

// Search ranks every book against query, best first. Books scoring below
// SearchThreshold are dropped; an empty query lists every book at 1.0.
// Equal scores keep pool order.
func (l *Library) Search(query string) []domain.SearchResult {
	var found []domain.SearchResult

	l.poolMu.RLock()
	for idx, book := range l.pool {
		score, ok := l.relevance(book, query)
		if !ok {
			continue
		}
		id := domain.BookID(idx)
		meta, exists := l.meta.get(id)
		if !exists {
			l.poolMu.RUnlock()
			panic("library: metadata missing for issued book id")
		}
		found = append(found, domain.SearchResult{Score: score, ID: id, Meta: meta})
	}
	l.poolMu.RUnlock()

	slices.SortStableFunc(found, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return found
}

// relevance is the best of whole-field similarity and containment density
// over title, author, description and content.
func (l *Library) relevance(book domain.Book, query string) (float64, bool) {
	if query == "" {
		return 1.0, true
	}
	best := 0.0
	for _, field := range [...]string{book.Title, book.Author, book.Description, book.Content} {
		best = max(best, l.scorer(query, field), containment(query, field))
	}
	return best, best >= SearchThreshold
}

// containment rewards a query that, repeated, covers a large share of the
// field: bytes(field) / (occurrences * runes(query)). Zero without a match.
func containment(query, field string) float64 {
	occurrences := strings.Count(field, query)
	if occurrences == 0 {
		return 0
	}
	covered := occurrences * utf8.RuneCountInString(query)
	return float64(len(field)) / float64(covered)
}

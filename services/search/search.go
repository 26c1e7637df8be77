package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/meghashyamc/clinicsearch/db/searchdb"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/index"
)

const (
	MinQueryLength       = 2
	MaxResults           = 20
	MaxResultsByCategory = 5
)

// Catalog represents the full-text search database operations needed by the full search page
type Catalog interface {
	Search(queryString string, limit int, offset int) (*searchdb.Response, error)
}

type Service struct {
	logger  logger.Logger
	index   *index.Index
	catalog Catalog
}

// New returns a query service over idx. catalog may be nil, in which case
// FullText reports an error.
func New(logger logger.Logger, idx *index.Index, catalog Catalog) *Service {
	return &Service{
		logger:  logger,
		index:   idx,
		catalog: catalog,
	}
}

// Warming reports whether the index is still waiting for its first medicines fetch.
func (s *Service) Warming() bool {
	return s.index.Warming()
}

// Search returns up to MaxResults matching records across all categories,
// title matches first, then subtitle matches, otherwise in index order.
func (s *Service) Search(query string) []index.Record {
	needle, ok := normalizeQuery(query)
	if !ok {
		return []index.Record{}
	}

	matches := make([]index.Record, 0)
	for _, category := range index.Categories {
		for _, record := range s.index.Records(category) {
			if matchesRecord(record, needle) {
				matches = append(matches, record)
			}
		}
	}

	rankMatches(matches, needle)
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}

	return matches
}

// ResultsByCategory returns up to MaxResultsByCategory matches per category,
// in index order. Every category is present, possibly empty.
func (s *Service) ResultsByCategory(query string) map[index.Category][]index.Record {
	results := make(map[index.Category][]index.Record, len(index.Categories))
	for _, category := range index.Categories {
		results[category] = []index.Record{}
	}

	needle, ok := normalizeQuery(query)
	if !ok {
		return results
	}

	for _, category := range index.Categories {
		for _, record := range s.index.Records(category) {
			if len(results[category]) == MaxResultsByCategory {
				break
			}
			if matchesRecord(record, needle) {
				results[category] = append(results[category], record)
			}
		}
	}

	return results
}

// FullText runs a relevance-scored query against the full-text catalog.
func (s *Service) FullText(query string, limit int, offset int) (*searchdb.Response, error) {
	if s.catalog == nil {
		s.logger.Error("full-text search requested without a catalog")
		return nil, ErrCatalogUnavailable
	}

	response, err := s.catalog.Search(query, limit, offset)
	if err != nil {
		s.logger.Error("failed to run full-text search", "query", query, "err", err.Error())
		return nil, err
	}

	return response, nil
}

// normalizeQuery lower-cases the query as typed. Queries with fewer than
// MinQueryLength characters once trimmed match nothing.
func normalizeQuery(query string) (string, bool) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		return "", false
	}
	return strings.ToLower(query), true
}

func matchesRecord(record index.Record, needle string) bool {
	haystack := strings.ToLower(record.Title + record.Subtitle + record.Description + record.Category)
	return strings.Contains(haystack, needle)
}

func rankMatches(matches []index.Record, needle string) {
	// title misses weigh more than subtitle misses
	rank := func(record index.Record) int {
		rank := 0
		if !strings.Contains(strings.ToLower(record.Title), needle) {
			rank += 2
		}
		if !strings.Contains(strings.ToLower(record.Subtitle), needle) {
			rank++
		}
		return rank
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return rank(matches[a]) < rank(matches[b])
	})
}

package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/metrics"
	"github.com/m3rciful/reviewbot/internal/fuzzy"
	"github.com/m3rciful/reviewbot/internal/pagination"
)

// SearchResult is one page of approved reviews for the employer that matched
// a query.
type SearchResult struct {
	MatchedEmployer string
	Score           int
	TotalReviews    int
	AverageRating   float64
	Reviews         []Review
	TotalPages      int
	CurrentPage     int
	HasPrev         bool
	HasNext         bool
}

// Searcher resolves free-text queries to approved employers.
type Searcher struct {
	store    Store
	minScore int
}

// NewSearcher builds a Searcher. Matches scoring below minScore are treated
// as no result; 0 accepts the best candidate whatever its score.
func NewSearcher(store Store, minScore int) *Searcher {
	return &Searcher{store: store, minScore: minScore}
}

// SearchApprovedReviews fuzzy-matches query against the approved employer
// names and returns the requested page of that employer's reviews. A nil
// result means nothing matched.
func (s *Searcher) SearchApprovedReviews(ctx context.Context, query string, page, limit int) (*SearchResult, error) {
	names, err := s.store.ApprovedEmployers(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	match, ok := fuzzy.ExtractOne(query, names)
	if !ok {
		metrics.ObserveSearch("empty")
		logger.Debug(ctx, "service.search", "search.empty")
		return nil, nil
	}
	if match.Score < s.minScore {
		metrics.ObserveSearch("miss")
		logger.Debug(ctx, "service.search", "search.miss",
			slog.String("employer", match.Value),
			slog.Int("score", match.Score),
		)
		return nil, nil
	}
	metrics.ObserveSearch("hit")
	logger.Debug(ctx, "service.search", "search.hit",
		slog.String("employer", match.Value),
		slog.Int("score", match.Score),
	)
	res, err := s.Page(ctx, match.Value, page, limit)
	if err != nil {
		return nil, err
	}
	res.Score = match.Score
	return res, nil
}

// Page returns a page of approved reviews for an already matched employer.
// An employer that lost all approved reviews yields an empty first page.
func (s *Searcher) Page(ctx context.Context, employer string, page, limit int) (*SearchResult, error) {
	count, avg, err := s.store.EmployerStats(ctx, employer)
	if err != nil {
		return nil, fmt.Errorf("search stats %q: %w", employer, err)
	}
	meta := pagination.FromTotal(count, page, limit)
	reviews, err := s.store.ApprovedReviewsByEmployer(ctx, employer, meta.Offset(), meta.Size)
	if err != nil {
		return nil, fmt.Errorf("search page %q: %w", employer, err)
	}
	return &SearchResult{
		MatchedEmployer: employer,
		TotalReviews:    count,
		AverageRating:   avg,
		Reviews:         reviews,
		TotalPages:      meta.TotalPages,
		CurrentPage:     meta.Page,
		HasPrev:         meta.HasPrev,
		HasNext:         meta.HasNext,
	}, nil
}

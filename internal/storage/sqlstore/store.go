// Package sqlstore implements review.Store on sqlx. Queries are written with
// "?" placeholders and rebound per driver, so the same statements run on
// postgres and sqlite3.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/internal/review"
)

// Store is a review.Store backed by a SQL database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an open connection. The schema is expected to be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

const reviewColumns = `id, user_id, user_name, employer, rating, comment, city, language, submitted_at, status`

func (s *Store) SaveReview(ctx context.Context, r review.Review) (int64, error) {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = s.now()
	}
	if r.Status == "" {
		r.Status = review.StatusPending
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO reviews (user_id, user_name, employer, rating, comment, city, language, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		r.UserID, r.UserName, r.Employer, r.Rating, r.Comment, r.City, r.Language, r.SubmittedAt, r.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save review: %w", err)
	}
	logger.Debug(ctx, "db", "review.saved",
		slog.Int64("review_id", id),
		slog.Int64("target_user_id", r.UserID),
	)
	return id, nil
}

func (s *Store) ApproveReview(ctx context.Context, city string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reviews SET status = ? WHERE id = ? AND city = ? AND status = ?`),
		review.StatusApproved, id, city, review.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("approve review %d: %w", id, err)
	}
	return affectedOne(res, "approve review", id)
}

func (s *Store) RejectReview(ctx context.Context, city string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM reviews WHERE id = ? AND city = ? AND status = ?`),
		id, city, review.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("reject review %d: %w", id, err)
	}
	return affectedOne(res, "reject review", id)
}

func affectedOne(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, review.ErrNotFound)
	}
	return nil
}

func (s *Store) GetUserIDByReview(ctx context.Context, city string, id int64) (int64, bool, error) {
	var userID int64
	err := s.db.GetContext(ctx, &userID, s.q(`SELECT user_id FROM reviews WHERE id = ? AND city = ?`), id, city)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("review owner %d: %w", id, err)
	}
	return userID, true, nil
}

func (s *Store) CountUserReviews(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM reviews WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("count reviews of %d: %w", userID, err)
	}
	return n, nil
}

func (s *Store) GetUserReviewsPaginated(ctx context.Context, userID int64, page, limit int) ([]review.Review, error) {
	if page < 0 {
		page = 0
	}
	out := []review.Review{}
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT `+reviewColumns+` FROM reviews
		WHERE user_id = ?
		ORDER BY submitted_at DESC, id DESC
		LIMIT ? OFFSET ?`),
		userID, limit, page*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("user reviews %d page %d: %w", userID, page, err)
	}
	return out, nil
}

func (s *Store) ApprovedEmployers(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT LOWER(employer) FROM reviews
		WHERE status = ?
		GROUP BY LOWER(employer)
		ORDER BY MIN(id)`),
		review.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("approved employers: %w", err)
	}
	return out, nil
}

func (s *Store) EmployerStats(ctx context.Context, employer string) (int, float64, error) {
	var row struct {
		Count int     `db:"total"`
		Avg   float64 `db:"avg_rating"`
	}
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT COUNT(*) AS total, CAST(COALESCE(AVG(rating), 0) AS DOUBLE PRECISION) AS avg_rating
		FROM reviews
		WHERE LOWER(employer) = ? AND status = ?`),
		employer, review.StatusApproved,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("employer stats %q: %w", employer, err)
	}
	return row.Count, row.Avg, nil
}

func (s *Store) ApprovedReviewsByEmployer(ctx context.Context, employer string, offset, limit int) ([]review.Review, error) {
	out := []review.Review{}
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT `+reviewColumns+` FROM reviews
		WHERE LOWER(employer) = ? AND status = ?
		ORDER BY submitted_at DESC, id DESC
		LIMIT ? OFFSET ?`),
		employer, review.StatusApproved, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("reviews of %q: %w", employer, err)
	}
	return out, nil
}

func (s *Store) SaveUser(ctx context.Context, u review.User) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, display_name, language, city, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name),
			language     = COALESCE(NULLIF(excluded.language, ''), users.language),
			city         = COALESCE(NULLIF(excluded.city, ''), users.city),
			updated_at   = excluded.updated_at`),
		u.ID, u.DisplayName, u.Language, u.City, now, now,
	)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (review.User, error) {
	var u review.User
	err := s.db.GetContext(ctx, &u, s.q(`
		SELECT user_id, display_name, language, city FROM users WHERE user_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return review.User{}, fmt.Errorf("user %d: %w", id, review.ErrNotFound)
	}
	if err != nil {
		return review.User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserLanguage(ctx context.Context, id int64, def string) (string, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, review.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	if u.Language == "" {
		return def, nil
	}
	return u.Language, nil
}

func (s *Store) UpdateUserLanguage(ctx context.Context, id int64, language string) error {
	return s.upsertColumn(ctx, id, "language", language)
}

func (s *Store) UpdateUserCity(ctx context.Context, id int64, city string) error {
	return s.upsertColumn(ctx, id, "city", city)
}

// upsertColumn sets a single profile column, creating the user row if needed.
// column is never user input.
func (s *Store) upsertColumn(ctx context.Context, id int64, column, value string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, `+column+`, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			`+column+` = excluded.`+column+`,
			updated_at = excluded.updated_at`),
		id, value, now, now,
	)
	if err != nil {
		return fmt.Errorf("update user %d %s: %w", id, column, err)
	}
	return nil
}

var _ review.Store = (*Store)(nil)

package review

import "context"

// Store is the persistence contract the bot core relies on. Every method is a
// single statement; multi-step sequences are not transactional.
type Store interface {
	// SaveReview inserts a pending review and returns its store-assigned id.
	SaveReview(ctx context.Context, r Review) (int64, error)
	// ApproveReview moves a pending review to approved. ErrNotFound when the
	// (city, id) pair has no pending review.
	ApproveReview(ctx context.Context, city string, id int64) error
	// RejectReview deletes a pending review. ErrNotFound when nothing was deleted.
	RejectReview(ctx context.Context, city string, id int64) error
	// GetUserIDByReview returns the submitter of (city, id); ok is false when absent.
	GetUserIDByReview(ctx context.Context, city string, id int64) (userID int64, ok bool, err error)
	CountUserReviews(ctx context.Context, userID int64) (int, error)
	// GetUserReviewsPaginated returns a user's reviews newest first.
	GetUserReviewsPaginated(ctx context.Context, userID int64, page, limit int) ([]Review, error)

	// ApprovedEmployers returns distinct lower-cased employer names of approved
	// reviews in first-approved order.
	ApprovedEmployers(ctx context.Context) ([]string, error)
	// EmployerStats returns count and average rating of approved reviews for a
	// lower-cased employer name.
	EmployerStats(ctx context.Context, employer string) (count int, avg float64, err error)
	// ApprovedReviewsByEmployer pages approved reviews for a lower-cased employer
	// name newest first.
	ApprovedReviewsByEmployer(ctx context.Context, employer string, offset, limit int) ([]Review, error)

	// SaveUser upserts the profile; an empty language keeps the stored one.
	SaveUser(ctx context.Context, u User) error
	// GetUser returns ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id int64) (User, error)
	// GetUserLanguage returns the stored language or def when none is set.
	GetUserLanguage(ctx context.Context, id int64, def string) (string, error)
	UpdateUserLanguage(ctx context.Context, id int64, language string) error
	UpdateUserCity(ctx context.Context, id int64, city string) error
}

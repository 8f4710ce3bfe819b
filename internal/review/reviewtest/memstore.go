// Package reviewtest provides an in-memory review.Store for tests.
package reviewtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/reviewbot/internal/review"
)

// MemStore implements review.Store over maps. Failing, when set, is returned
// by every method.
type MemStore struct {
	mu      sync.Mutex
	nextID  int64
	reviews map[int64]review.Review
	users   map[int64]review.User
	Failing error
	Now     func() time.Time
}

// New returns an empty store.
func New() *MemStore {
	return &MemStore{
		reviews: make(map[int64]review.Review),
		users:   make(map[int64]review.User),
		Now:     time.Now,
	}
}

func (m *MemStore) SaveReview(_ context.Context, r review.Review) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return 0, m.Failing
	}
	m.nextID++
	r.ID = m.nextID
	if r.Status == "" {
		r.Status = review.StatusPending
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = m.Now()
	}
	m.reviews[r.ID] = r
	return r.ID, nil
}

// Review returns a stored review by id.
func (m *MemStore) Review(id int64) (review.Review, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	return r, ok
}

// Len returns the number of stored reviews.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reviews)
}

func (m *MemStore) pending(city string, id int64) (review.Review, bool) {
	r, ok := m.reviews[id]
	if !ok || r.City != city || r.Status != review.StatusPending {
		return review.Review{}, false
	}
	return r, true
}

func (m *MemStore) ApproveReview(_ context.Context, city string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return m.Failing
	}
	r, ok := m.pending(city, id)
	if !ok {
		return review.ErrNotFound
	}
	r.Status = review.StatusApproved
	m.reviews[id] = r
	return nil
}

func (m *MemStore) RejectReview(_ context.Context, city string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return m.Failing
	}
	if _, ok := m.pending(city, id); !ok {
		return review.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *MemStore) GetUserIDByReview(_ context.Context, city string, id int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return 0, false, m.Failing
	}
	r, ok := m.reviews[id]
	if !ok || r.City != city {
		return 0, false, nil
	}
	return r.UserID, true, nil
}

func (m *MemStore) userReviews(userID int64) []review.Review {
	var out []review.Review
	for _, r := range m.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemStore) CountUserReviews(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return 0, m.Failing
	}
	return len(m.userReviews(userID)), nil
}

func (m *MemStore) GetUserReviewsPaginated(_ context.Context, userID int64, page, limit int) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return nil, m.Failing
	}
	return window(m.userReviews(userID), page*limit, limit), nil
}

func (m *MemStore) approvedByID() []review.Review {
	var out []review.Review
	for _, r := range m.reviews {
		if r.Status == review.StatusApproved {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) ApprovedEmployers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return nil, m.Failing
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.approvedByID() {
		name := strings.ToLower(r.Employer)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func (m *MemStore) approvedFor(employer string) []review.Review {
	var out []review.Review
	for _, r := range m.approvedByID() {
		if strings.ToLower(r.Employer) == employer {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemStore) EmployerStats(_ context.Context, employer string) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return 0, 0, m.Failing
	}
	rs := m.approvedFor(employer)
	if len(rs) == 0 {
		return 0, 0, nil
	}
	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}
	return len(rs), float64(sum) / float64(len(rs)), nil
}

func (m *MemStore) ApprovedReviewsByEmployer(_ context.Context, employer string, offset, limit int) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return nil, m.Failing
	}
	return window(m.approvedFor(employer), offset, limit), nil
}

func (m *MemStore) SaveUser(_ context.Context, u review.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return m.Failing
	}
	cur := m.users[u.ID]
	cur.ID = u.ID
	if u.DisplayName != "" {
		cur.DisplayName = u.DisplayName
	}
	if u.Language != "" {
		cur.Language = u.Language
	}
	if u.City != "" {
		cur.City = u.City
	}
	m.users[u.ID] = cur
	return nil
}

func (m *MemStore) GetUser(_ context.Context, id int64) (review.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return review.User{}, m.Failing
	}
	u, ok := m.users[id]
	if !ok {
		return review.User{}, review.ErrNotFound
	}
	return u, nil
}

func (m *MemStore) GetUserLanguage(_ context.Context, id int64, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return "", m.Failing
	}
	if u, ok := m.users[id]; ok && u.Language != "" {
		return u.Language, nil
	}
	return def, nil
}

func (m *MemStore) UpdateUserLanguage(_ context.Context, id int64, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return m.Failing
	}
	u := m.users[id]
	u.ID = id
	u.Language = language
	m.users[id] = u
	return nil
}

func (m *MemStore) UpdateUserCity(_ context.Context, id int64, city string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failing != nil {
		return m.Failing
	}
	u := m.users[id]
	u.ID = id
	u.City = city
	m.users[id] = u
	return nil
}

func window(rs []review.Review, offset, limit int) []review.Review {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rs) || limit <= 0 {
		return []review.Review{}
	}
	end := min(offset+limit, len(rs))
	return append([]review.Review(nil), rs[offset:end]...)
}

var _ review.Store = (*MemStore)(nil)

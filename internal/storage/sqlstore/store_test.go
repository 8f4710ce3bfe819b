package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/reviewbot/core/database"
	"github.com/m3rciful/reviewbot/internal/review"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	cfg := coredatabase.Config{
		Driver:        coredatabase.DriverSQLite,
		Path:          filepath.Join(t.TempDir(), "reviews.db"),
		MigrationsDir: filepath.Join("..", "..", "..", "migrations", "sqlite3"),
	}
	require.NoError(t, coredatabase.RunMigrations(cfg))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func fixedClock(s *Store) func(d time.Duration) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestStoreContractSQLite(t *testing.T) {
	runStoreContract(t, newSQLiteStore(t))
}

// runStoreContract is shared with the postgres integration test.
func runStoreContract(t *testing.T, s *Store) {
	ctx := context.Background()
	advance := fixedClock(s)

	save := func(userID int64, employer string, rating int) int64 {
		t.Helper()
		id, err := s.SaveReview(ctx, review.Review{
			UserID: userID, UserName: "Ann", Employer: employer, Rating: rating,
			Comment: "ok", City: "warsaw", Language: "pl",
		})
		require.NoError(t, err)
		advance(time.Minute)
		return id
	}

	t.Run("save and moderate", func(t *testing.T) {
		id := save(10, "Acme", 5)
		assert.Positive(t, id)

		owner, ok, err := s.GetUserIDByReview(ctx, "warsaw", id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10), owner)

		_, ok, err = s.GetUserIDByReview(ctx, "krakow", id)
		require.NoError(t, err)
		assert.False(t, ok, "city is part of the key")

		require.NoError(t, s.ApproveReview(ctx, "warsaw", id))
		assert.ErrorIs(t, s.ApproveReview(ctx, "warsaw", id), review.ErrNotFound)
		assert.ErrorIs(t, s.RejectReview(ctx, "warsaw", id), review.ErrNotFound, "approved is immutable")
	})

	t.Run("reject removes row", func(t *testing.T) {
		before, err := s.CountUserReviews(ctx, 11)
		require.NoError(t, err)
		id := save(11, "Globex", 2)
		n, err := s.CountUserReviews(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, before+1, n)

		require.NoError(t, s.RejectReview(ctx, "warsaw", id))
		_, ok, err := s.GetUserIDByReview(ctx, "warsaw", id)
		require.NoError(t, err)
		assert.False(t, ok)
		n, err = s.CountUserReviews(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, before, n)
		assert.ErrorIs(t, s.RejectReview(ctx, "warsaw", id), review.ErrNotFound)
	})

	t.Run("user reviews newest first", func(t *testing.T) {
		var ids []int64
		for i := 0; i < 5; i++ {
			ids = append(ids, save(12, "Initech", 3))
		}
		page0, err := s.GetUserReviewsPaginated(ctx, 12, 0, 2)
		require.NoError(t, err)
		require.Len(t, page0, 2)
		assert.Equal(t, ids[4], page0[0].ID)
		assert.Equal(t, ids[3], page0[1].ID)
		assert.Equal(t, review.StatusPending, page0[0].Status)
		assert.Equal(t, "pl", page0[0].Language)

		page2, err := s.GetUserReviewsPaginated(ctx, 12, 2, 2)
		require.NoError(t, err)
		require.Len(t, page2, 1)
		assert.Equal(t, ids[0], page2[0].ID)

		page3, err := s.GetUserReviewsPaginated(ctx, 12, 3, 2)
		require.NoError(t, err)
		assert.Empty(t, page3)
	})

	t.Run("approved employers and stats", func(t *testing.T) {
		a := save(13, "Hooli", 4)
		b := save(14, "HOOLI", 2)
		c := save(15, "Pied Piper", 5)
		_ = save(16, "Pending Co", 1)
		for _, id := range []int64{a, b, c} {
			require.NoError(t, s.ApproveReview(ctx, "warsaw", id))
		}

		names, err := s.ApprovedEmployers(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "hooli")
		assert.Contains(t, names, "pied piper")
		assert.NotContains(t, names, "pending co")
		assert.Less(t, indexOf(names, "acme"), indexOf(names, "hooli"), "first approved first")

		count, avg, err := s.EmployerStats(ctx, "hooli")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.InDelta(t, 3.0, avg, 1e-9)

		count, avg, err = s.EmployerStats(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Zero(t, avg)

		rs, err := s.ApprovedReviewsByEmployer(ctx, "hooli", 0, 5)
		require.NoError(t, err)
		require.Len(t, rs, 2)
		assert.Equal(t, b, rs[0].ID)
		assert.Equal(t, "HOOLI", rs[0].Employer, "case preserved")

		rs, err = s.ApprovedReviewsByEmployer(ctx, "hooli", 1, 5)
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, a, rs[0].ID)
	})

	t.Run("users", func(t *testing.T) {
		_, err := s.GetUser(ctx, 99)
		assert.ErrorIs(t, err, review.ErrNotFound)

		lang, err := s.GetUserLanguage(ctx, 99, "ru")
		require.NoError(t, err)
		assert.Equal(t, "ru", lang)

		require.NoError(t, s.SaveUser(ctx, review.User{ID: 99, DisplayName: "Bob"}))
		require.NoError(t, s.UpdateUserLanguage(ctx, 99, "uk"))
		require.NoError(t, s.UpdateUserCity(ctx, 99, "krakow"))
		require.NoError(t, s.SaveUser(ctx, review.User{ID: 99, DisplayName: "Bobby"}))

		u, err := s.GetUser(ctx, 99)
		require.NoError(t, err)
		assert.Equal(t, review.User{ID: 99, DisplayName: "Bobby", Language: "uk", City: "krakow"}, u)

		lang, err = s.GetUserLanguage(ctx, 99, "ru")
		require.NoError(t, err)
		assert.Equal(t, "uk", lang)

		require.NoError(t, s.UpdateUserCity(ctx, 100, "gdansk"))
		u, err = s.GetUser(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, "gdansk", u.City)
		assert.Empty(t, u.Language)
	})
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func TestRebindPerDriver(t *testing.T) {
	pg := New(sqlx.NewDb(nil, "postgres"))
	assert.Equal(t, "a = $1 AND b = $2", pg.q("a = ? AND b = ?"))
	lite := New(sqlx.NewDb(nil, "sqlite3"))
	assert.Equal(t, "a = ? AND b = ?", lite.q("a = ? AND b = ?"))
}

package review_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/reviewkit/db"
	"github.com/Skryldev/reviewkit/migrations"
	"github.com/Skryldev/reviewkit/models"
	"github.com/Skryldev/reviewkit/repo"
	"github.com/Skryldev/reviewkit/review"
)

func sqliteStore(t *testing.T) repo.ReviewRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.db")
	require.NoError(t, migrations.Up("sqlite3://"+path))
	d, err := db.Open(db.Config{DSN: path, DriverName: "sqlite3", MaxOpenConns: 25, MaxIdleConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return repo.NewReviewRepo(d)
}

func badgerStore(t *testing.T) repo.ReviewRepository {
	t.Helper()
	bdb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	return repo.NewBadgerReviewRepo(bdb)
}

func TestUpdateOwned_RealStores(t *testing.T) {
	for name, open := range map[string]func(*testing.T) repo.ReviewRepository{
		"sqlite3": sqliteStore,
		"badger":  badgerStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			counts := &review.CountingObserver{}
			svc := review.NewService(store, review.WithObserver(counts))

			for _, p := range []models.CreateReviewParams{
				{ID: "r1", Product: "1", Author: alice.Email, Message: "alice's"},
				{ID: "r2", Product: "1", Author: bob.Email, Message: "bob's"},
			} {
				_, err := store.Insert(ctx, p)
				require.NoError(t, err)
			}

			// own review
			out, err := svc.UpdateOwned(ctx, alice, review.UpdateRequest{TargetID: "r1", NewMessage: "edited"})
			require.NoError(t, err)
			require.EqualValues(t, 1, out.MatchedCount)
			require.Equal(t, "alice's", out.PriorRecords[0].Message)

			// same request again
			out, err = svc.UpdateOwned(ctx, alice, review.UpdateRequest{TargetID: "r1", NewMessage: "edited"})
			require.NoError(t, err)
			require.EqualValues(t, 1, out.MatchedCount)

			// someone else's review
			out, err = svc.UpdateOwned(ctx, alice, review.UpdateRequest{TargetID: "r2", NewMessage: "hacked"})
			require.NoError(t, err)
			require.Zero(t, out.MatchedCount)

			// missing review
			out, err = svc.UpdateOwned(ctx, alice, review.UpdateRequest{TargetID: "nope", NewMessage: "x"})
			require.NoError(t, err)
			require.Zero(t, out.MatchedCount)

			// operator-shaped id
			_, err = svc.UpdateOwned(ctx, alice, review.NewUpdateRequest(map[string]any{"id": map[string]any{"$ne": ""}, "message": "x"}))
			require.ErrorIs(t, err, review.ErrInvalidInput)

			r1, err := store.GetByID(ctx, "r1")
			require.NoError(t, err)
			require.Equal(t, "edited", r1.Message)
			require.Equal(t, alice.Email, r1.Author)

			r2, err := store.GetByID(ctx, "r2")
			require.NoError(t, err)
			require.Equal(t, "bob's", r2.Message)
			require.Equal(t, bob.Email, r2.Author)

			updates, multi, mismatch := counts.Counts()
			require.EqualValues(t, 4, updates)
			require.Zero(t, multi, "multi-match must never fire against a real store")
			require.Zero(t, mismatch, "ownership mismatch must never fire against a real store")
		})
	}
}

func TestUpdateOwned_ConcurrentAuthorsOnPooledSQLite(t *testing.T) {
	ctx := context.Background()
	store := sqliteStore(t)
	counts := &review.CountingObserver{}
	svc := review.NewService(store, review.WithObserver(counts))

	const authors = 16
	for i := 0; i < authors; i++ {
		_, err := store.Insert(ctx, models.CreateReviewParams{
			ID:      fmt.Sprintf("r%d", i),
			Product: "1",
			Author:  fmt.Sprintf("user%d@example.com", i),
			Message: "old",
		})
		require.NoError(t, err)
	}

	var (
		wg   sync.WaitGroup
		errs = make(chan error, authors*5)
	)
	for round := 0; round < 5; round++ {
		for i := 0; i < authors; i++ {
			wg.Add(1)
			go func(round, i int) {
				defer wg.Done()
				identity := &models.Identity{Email: fmt.Sprintf("user%d@example.com", i)}
				out, err := svc.UpdateOwned(ctx, identity, review.UpdateRequest{
					TargetID:   fmt.Sprintf("r%d", i),
					NewMessage: fmt.Sprintf("round %d", round),
				})
				if err == nil && out.MatchedCount != 1 {
					err = fmt.Errorf("r%d round %d: matched %d", i, round, out.MatchedCount)
				}
				errs <- err
			}(round, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	updates, multi, mismatch := counts.Counts()
	require.EqualValues(t, authors*5, updates)
	require.Zero(t, multi)
	require.Zero(t, mismatch)
}

package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/reviewkit/db"
	"github.com/Skryldev/reviewkit/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// ReviewRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// ReviewRepository is the persistence contract for product reviews. It is
// deliberately narrow: creation and lookup for seeding, plus the scoped
// update primitive the review service is built on.
type ReviewRepository interface {
	Insert(ctx context.Context, params models.CreateReviewParams) (*models.Review, error)
	GetByID(ctx context.Context, id string) (*models.Review, error)

	// UpdateScoped applies set to the records matching filter. Without
	// opts.Multi at most one record is modified.
	UpdateScoped(ctx context.Context, filter Filter, set Set, opts UpdateOptions) (UpdateResult, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// reviewRepo — SQL implementation
// ─────────────────────────────────────────────────────────────────────────────

type reviewRepo struct {
	db *db.DB
}

// NewReviewRepo returns a ReviewRepository backed by the "reviews" table.
// It needs a *db.DB rather than a Querier because UpdateScoped opens its own
// transaction.
func NewReviewRepo(d *db.DB) ReviewRepository {
	return &reviewRepo{db: d}
}

const (
	sqlInsertReview = `
		INSERT INTO reviews (id, product, author, message, likes_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`

	sqlSelectReview = `
		SELECT id, product, author, message, likes_count, created_at, updated_at
		FROM   reviews`

	sqlGetReviewByID = sqlSelectReview + `
		WHERE  id = $1
		LIMIT  1`
)

// Insert creates a review. A UUID is assigned when params.ID is empty.
func (r *reviewRepo) Insert(ctx context.Context, params models.CreateReviewParams) (*models.Review, error) {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	if _, err := r.db.Exec(ctx, sqlInsertReview, id, params.Product, params.Author, params.Message, now, now); err != nil {
		return nil, fmt.Errorf("repo/review: insert: %w", err)
	}
	return &models.Review{
		ID:        id,
		Product:   params.Product,
		Author:    params.Author,
		Message:   params.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByID returns db.ErrNotFound when no review has the given id.
func (r *reviewRepo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	rev := &models.Review{}
	err := r.db.QueryRow(ctx, sqlGetReviewByID, id).Scan(
		&rev.ID, &rev.Product, &rev.Author, &rev.Message, &rev.LikesCount, &rev.CreatedAt, &rev.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/review: %w", err)
	}
	return rev, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateScoped
// ─────────────────────────────────────────────────────────────────────────────

// UpdateScoped snapshots the matching rows and updates them inside one
// transaction. Each UPDATE repeats the full filter next to the id, so a row
// that stopped matching between snapshot and write is left alone and does not
// count as modified.
func (r *reviewRepo) UpdateScoped(ctx context.Context, filter Filter, set Set, opts UpdateOptions) (UpdateResult, error) {
	if err := filter.validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := set.validate(); err != nil {
		return UpdateResult{}, err
	}

	where, whereArgs := filter.sql(1)
	selectQuery := scopedSelect(r.db.DriverName(), where, opts.Multi)

	guard, guardArgs := filter.sql(4)
	updateQuery := fmt.Sprintf(
		"UPDATE reviews SET %s = $1, updated_at = $2 WHERE id = $3 AND %s",
		columns[set.Field], guard)

	var result UpdateResult
	err := r.db.ExecTx(ctx, func(tx *db.Tx) error {
		rows, err := tx.Query(ctx, selectQuery, whereArgs...)
		if err != nil {
			return err
		}
		prior, err := scanReviews(rows)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, p := range prior {
			args := append([]any{set.Value, now, p.ID}, guardArgs...)
			res, err := tx.Exec(ctx, updateQuery, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			result.Modified += n
			result.Original = append(result.Original, p)
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("repo/review: scoped update: %w", err)
	}
	return result, nil
}

// scopedSelect builds the snapshot query. On servers with row locks the
// matched rows are locked until the transaction ends, so the snapshot is the
// exact pre-update state even under READ COMMITTED. SQLite holds the database
// write lock for the whole transaction already.
func scopedSelect(driver, where string, multi bool) string {
	q := sqlSelectReview + " WHERE " + where + " ORDER BY id"
	if !multi {
		q += " LIMIT 1"
	}
	switch driver {
	case "postgres", "pgx", "mysql":
		q += " FOR UPDATE"
	}
	return q
}

// scanReviews drains and closes rows.
func scanReviews(rows *sql.Rows) ([]models.Review, error) {
	defer rows.Close()
	var out []models.Review
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.Product, &rev.Author, &rev.Message, &rev.LikesCount, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repo/review: scan: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

var _ ReviewRepository = (*reviewRepo)(nil)

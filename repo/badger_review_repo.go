package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack"

	"github.com/Skryldev/reviewkit/db"
	"github.com/Skryldev/reviewkit/models"
)

const reviewKeyPrefix = "review:"

// badgerReviewRepo keeps each review as a msgpack document under
// "review:{id}". Scoped updates run in a single read-write transaction, so
// the match and the write commit together or badger reports a conflict.
type badgerReviewRepo struct {
	db *badger.DB
}

// NewBadgerReviewRepo returns a ReviewRepository backed by BadgerDB.
func NewBadgerReviewRepo(bdb *badger.DB) ReviewRepository {
	return &badgerReviewRepo{db: bdb}
}

func reviewKey(id string) []byte { return []byte(reviewKeyPrefix + id) }

func (r *badgerReviewRepo) Insert(ctx context.Context, params models.CreateReviewParams) (*models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("repo/review: insert: %w", db.DefaultErrorMapper().Map(err))
	}
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	rev := models.Review{
		ID:        id,
		Product:   params.Product,
		Author:    params.Author,
		Message:   params.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(reviewKey(id))
		switch {
		case err == nil:
			return db.ErrDuplicateKey
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return putReview(txn, rev)
	})
	if err != nil {
		return nil, fmt.Errorf("repo/review: insert: %w", err)
	}
	return &rev, nil
}

func (r *badgerReviewRepo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("repo/review: %w", db.DefaultErrorMapper().Map(err))
	}
	var rev models.Review
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reviewKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return msgpack.Unmarshal(v, &rev)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("repo/review: %w", db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repo/review: %w", err)
	}
	return &rev, nil
}

// UpdateScoped narrows the scan to a single key when the filter pins the id,
// otherwise it walks the review prefix.
func (r *badgerReviewRepo) UpdateScoped(ctx context.Context, filter Filter, set Set, opts UpdateOptions) (UpdateResult, error) {
	if err := filter.validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := set.validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, fmt.Errorf("repo/review: scoped update: %w", db.DefaultErrorMapper().Map(err))
	}

	var result UpdateResult
	err := r.db.Update(func(txn *badger.Txn) error {
		candidates, err := r.candidates(txn, filter)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, doc := range candidates {
			if !filter.Matches(doc) {
				continue
			}
			prior := doc
			set.apply(&doc)
			doc.UpdatedAt = now
			if err := putReview(txn, doc); err != nil {
				return err
			}
			result.Modified++
			result.Original = append(result.Original, prior)
			if !opts.Multi {
				break
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		err = &db.DBError{Sentinel: db.ErrDeadlock, Cause: err}
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("repo/review: scoped update: %w", err)
	}
	return result, nil
}

func (r *badgerReviewRepo) candidates(txn *badger.Txn, filter Filter) ([]models.Review, error) {
	if id, ok := filter.Value(FieldID); ok {
		item, err := txn.Get(reviewKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		doc, err := decodeReview(item)
		if err != nil {
			return nil, err
		}
		return []models.Review{doc}, nil
	}

	prefix := []byte(reviewKeyPrefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var docs []models.Review
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		doc, err := decodeReview(it.Item())
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeReview(item *badger.Item) (models.Review, error) {
	var doc models.Review
	err := item.Value(func(v []byte) error {
		return msgpack.Unmarshal(v, &doc)
	})
	return doc, err
}

func putReview(txn *badger.Txn, rev models.Review) error {
	b, err := msgpack.Marshal(&rev)
	if err != nil {
		return err
	}
	return txn.Set(reviewKey(rev.ID), b)
}

var _ ReviewRepository = (*badgerReviewRepo)(nil)

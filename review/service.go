// Package review implements the owner-scoped update of a single product
// review.
//
// The service never reads a review to decide whether the caller may change
// it. Ownership is part of the update filter itself (id AND author), so the
// store's atomic filtered update is the authorization boundary and no
// in-process locking is needed.
package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Skryldev/reviewkit/models"
	"github.com/Skryldev/reviewkit/repo"
)

// UpdateRequest is the untrusted input. Fields are typed any so that whatever
// shape the caller sent reaches validation unchanged.
type UpdateRequest struct {
	TargetID   any
	NewMessage any
}

// NewUpdateRequest picks "id" and "message" out of a decoded JSON body.
// Other keys are ignored.
func NewUpdateRequest(body map[string]any) UpdateRequest {
	return UpdateRequest{
		TargetID:   body["id"],
		NewMessage: body["message"],
	}
}

func (r UpdateRequest) validate() (targetID, message string, err error) {
	targetID, ok := r.TargetID.(string)
	if !ok {
		return "", "", fmt.Errorf("%w: id must be a string, got %T", ErrInvalidInput, r.TargetID)
	}
	message, ok = r.NewMessage.(string)
	if !ok {
		return "", "", fmt.Errorf("%w: message must be a string, got %T", ErrInvalidInput, r.NewMessage)
	}
	return targetID, message, nil
}

// Service updates reviews on behalf of their authors.
type Service struct {
	store    Store
	observer Observer
	log      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithObserver sets the diagnostics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService returns a Service writing through store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = LogObserver{Log: s.log}
	}
	return s
}

// UpdateOwned replaces the message of review req.TargetID if, and only if,
// it was written by identity. A nil identity means the caller could not be
// authenticated.
//
// Every check runs before the store is contacted. A review that does not
// exist and a review owned by someone else both yield MatchedCount 0.
func (s *Service) UpdateOwned(ctx context.Context, identity *models.Identity, req UpdateRequest) (Outcome, error) {
	if identity == nil || identity.Email == "" {
		return Outcome{}, ErrUnauthorized
	}
	targetID, message, err := req.validate()
	if err != nil {
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	filter := repo.Where(
		repo.Eq{Field: repo.FieldID, Value: targetID},
		repo.Eq{Field: repo.FieldAuthor, Value: identity.Email},
	)
	set := repo.Set{Field: repo.FieldMessage, Value: message}

	res, storeErr := s.store.UpdateScoped(ctx, filter, set, repo.UpdateOptions{})

	var out Outcome
	if storeErr == nil {
		out = classify(res, *identity)
		s.observer.Observe(ctx, *identity, targetID, out.Diagnostics)
	}

	if err := ctx.Err(); err != nil {
		s.log.Warn("caller gone before review update completed",
			zap.String("review_id", targetID),
			zap.Bool("store_succeeded", storeErr == nil),
			zap.Error(err),
		)
		return Outcome{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if storeErr != nil {
		s.log.Error("review update failed",
			zap.String("review_id", targetID),
			zap.Error(storeErr),
		)
		return Outcome{}, &StorageError{Cause: storeErr}
	}

	s.log.Debug("review updated",
		zap.String("review_id", targetID),
		zap.Int64("matched", out.MatchedCount),
	)
	return out, nil
}

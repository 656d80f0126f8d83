// Package httpapi exposes the review update over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Skryldev/reviewkit/auth"
	"github.com/Skryldev/reviewkit/models"
	"github.com/Skryldev/reviewkit/review"
)

// ReviewsPath is the route of the update endpoint.
const ReviewsPath = "/rest/products/reviews"

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 10

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Updater is the part of review.Service the handler depends on.
type Updater interface {
	UpdateOwned(ctx context.Context, identity *models.Identity, req review.UpdateRequest) (review.Outcome, error)
}

// Handler serves the review endpoints.
type Handler struct {
	svc          Updater
	log          *zap.Logger
	maxBodyBytes int64
}

// NewHandler returns a Handler. maxBodyBytes <= 0 selects DefaultMaxBodyBytes.
func NewHandler(svc Updater, log *zap.Logger, maxBodyBytes int64) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{svc: svc, log: log, maxBodyBytes: maxBodyBytes}
}

// NewRouter wires the handler behind identity resolution and panic recovery.
func NewRouter(h *Handler, resolver auth.Resolver) http.Handler {
	r := mux.NewRouter()
	r.Use(auth.Middleware(resolver))
	r.HandleFunc(ReviewsPath, h.UpdateReview).Methods(http.MethodPatch)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(h.log)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(r)
}

type errorResponse struct {
	Error string `json:"error"`
}

type updateResponse struct {
	Modified int64           `json:"modified"`
	Original []models.Review `json:"original"`
}

// UpdateReview handles PATCH /rest/products/reviews with a body of
// {"id": "...", "message": "..."}.
//
// A body that is not a JSON object is treated like one with missing fields,
// so an anonymous caller still gets 401 rather than 400.
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		h.log.Debug("cannot decode review update body", zap.Error(err))
		body = nil
	}

	identity := auth.IdentityFromContext(r.Context())
	outcome, err := h.svc.UpdateOwned(r.Context(), identity, review.NewUpdateRequest(body))
	switch {
	case err == nil:
		original := outcome.PriorRecords
		if original == nil {
			original = []models.Review{}
		}
		writeJSON(w, h.log, http.StatusOK, updateResponse{
			Modified: outcome.MatchedCount,
			Original: original,
		})
	case errors.Is(err, review.ErrUnauthorized):
		writeJSON(w, h.log, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	case errors.Is(err, review.ErrInvalidInput):
		h.log.Debug("invalid review update", zap.Error(err))
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Error: "Invalid input format"})
	case errors.Is(err, review.ErrCancelled):
		h.log.Info("client went away, dropping review update response", zap.Error(err))
	default:
		writeJSON(w, h.log, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("error encoding response", zap.Error(err))
	}
}

package review

import (
	"github.com/samber/lo"

	"github.com/Skryldev/reviewkit/models"
	"github.com/Skryldev/reviewkit/repo"
)

// Outcome is the result of a completed scoped update.
type Outcome struct {
	// MatchedCount is how many records matched the scoped filter and were
	// modified. It is 0 or 1 when ids are unique.
	MatchedCount int64
	// PriorRecords holds the pre-update state of the modified records.
	PriorRecords []models.Review
	Diagnostics  Diagnostics
}

// Diagnostics are invariant checks over an outcome. Neither flag fails the
// update; both should stay false forever.
type Diagnostics struct {
	// MultiMatchDetected: more than one record was modified for a single
	// id + author pair, so either ids are not unique or the filter lost its
	// single-record scope.
	MultiMatchDetected bool `json:"multiMatchDetected"`
	// OwnershipMismatchDetected: the modified record belonged to someone
	// other than the caller, so the author clause was not applied.
	OwnershipMismatchDetected bool `json:"ownershipMismatchDetected"`
}

// Any reports whether either flag is set.
func (d Diagnostics) Any() bool {
	return d.MultiMatchDetected || d.OwnershipMismatchDetected
}

func classify(res repo.UpdateResult, identity models.Identity) Outcome {
	out := Outcome{
		MatchedCount: res.Modified,
		PriorRecords: res.Original,
	}
	out.Diagnostics = Diagnostics{
		MultiMatchDetected:        multiMatch(out),
		OwnershipMismatchDetected: ownershipMismatch(out, identity),
	}
	return out
}

func multiMatch(o Outcome) bool {
	return o.MatchedCount > 1
}

func ownershipMismatch(o Outcome, identity models.Identity) bool {
	if o.MatchedCount != 1 {
		return false
	}
	first, ok := lo.First(o.PriorRecords)
	return ok && first.Author != identity.Email
}

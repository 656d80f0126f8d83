package review

import (
	"context"

	"github.com/Skryldev/reviewkit/repo"
)

//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

// Store is the single primitive the service needs from persistence.
// repo.ReviewRepository satisfies it.
type Store interface {
	UpdateScoped(ctx context.Context, filter repo.Filter, set repo.Set, opts repo.UpdateOptions) (repo.UpdateResult, error)
}

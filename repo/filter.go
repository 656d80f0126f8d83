package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skryldev/reviewkit/models"
)

var (
	// ErrUnknownField is returned when a filter or mutation names a field
	// outside the review schema.
	ErrUnknownField = errors.New("repo/review: unknown field")

	// ErrImmutableField is returned when a mutation targets a field that may
	// not change after creation.
	ErrImmutableField = errors.New("repo/review: field is immutable")

	// ErrEmptyFilter is returned for a scoped update without any condition.
	ErrEmptyFilter = errors.New("repo/review: filter has no conditions")
)

// Field names a review attribute. Only the constants below are accepted;
// they map to fixed column names so no caller text ever reaches SQL.
type Field string

const (
	FieldID      Field = "id"
	FieldProduct Field = "product"
	FieldAuthor  Field = "author"
	FieldMessage Field = "message"
)

var columns = map[Field]string{
	FieldID:      "id",
	FieldProduct: "product",
	FieldAuthor:  "author",
	FieldMessage: "message",
}

var mutable = map[Field]bool{
	FieldMessage: true,
}

// Eq is a literal equality condition. Value is always bound as a parameter.
type Eq struct {
	Field Field
	Value string
}

// Filter is a conjunction of equality conditions.
type Filter []Eq

// Where builds a Filter from its conditions.
func Where(conds ...Eq) Filter { return Filter(conds) }

// Value returns the value the filter requires for field, if any.
func (f Filter) Value(field Field) (string, bool) {
	for _, c := range f {
		if c.Field == field {
			return c.Value, true
		}
	}
	return "", false
}

// Matches reports whether r satisfies every condition.
func (f Filter) Matches(r models.Review) bool {
	for _, c := range f {
		if fieldValue(r, c.Field) != c.Value {
			return false
		}
	}
	return true
}

func (f Filter) validate() error {
	if len(f) == 0 {
		return ErrEmptyFilter
	}
	for _, c := range f {
		if _, ok := columns[c.Field]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
		}
	}
	return nil
}

// sql renders the filter as "col = $n AND ..." with placeholders numbered
// from first.
func (f Filter) sql(first int) (string, []any) {
	clauses := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	for i, c := range f {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", columns[c.Field], first+i))
		args = append(args, c.Value)
	}
	return strings.Join(clauses, " AND "), args
}

// Set is a field-level mutation. Whole-document replacement is not
// expressible.
type Set struct {
	Field Field
	Value string
}

func (s Set) validate() error {
	if _, ok := columns[s.Field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, s.Field)
	}
	if !mutable[s.Field] {
		return fmt.Errorf("%w: %q", ErrImmutableField, s.Field)
	}
	return nil
}

func (s Set) apply(r *models.Review) {
	switch s.Field {
	case FieldMessage:
		r.Message = s.Value
	}
}

// UpdateOptions controls how many records an update may touch. The zero
// value modifies at most one record.
type UpdateOptions struct {
	Multi bool
}

// UpdateResult reports how many records were modified together with their
// state before the update.
type UpdateResult struct {
	Modified int64
	Original []models.Review
}

func fieldValue(r models.Review, f Field) string {
	switch f {
	case FieldID:
		return r.ID
	case FieldProduct:
		return r.Product
	case FieldAuthor:
		return r.Author
	case FieldMessage:
		return r.Message
	}
	return ""
}

package models

import "time"

// Review represents a row in the "reviews" table (or a document in the
// key-value backend). Author and ID never change after creation; Message is
// the only field the update path may touch.
type Review struct {
	ID         string    `json:"_id" msgpack:"id"`
	Product    string    `json:"product" msgpack:"product"`
	Author     string    `json:"author" msgpack:"author"`
	Message    string    `json:"message" msgpack:"message"`
	LikesCount int       `json:"likesCount" msgpack:"likes_count"`
	CreatedAt  time.Time `json:"createdAt" msgpack:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" msgpack:"updated_at"`
}

// CreateReviewParams holds the fields required to create a review. ID is
// optional; a random UUID is assigned when empty.
type CreateReviewParams struct {
	ID      string
	Product string
	Author  string
	Message string
}

// Identity is an authenticated principal. Email is its stable identifier and
// is what review authorship is recorded against.
type Identity struct {
	Email string `json:"email"`
}

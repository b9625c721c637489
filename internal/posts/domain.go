// Package posts implements the editorial content surface. It is the
// primary consumer of ownership-aware authorization checks.
package posts

import "time"

// Post statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post is a single piece of editorial content.
type Post struct {
	ID          int64
	AuthorID    int64
	Title       string
	Slug        string
	Body        string
	Status      string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Published reports whether the post is publicly visible.
func (p Post) Published() bool {
	return p.Status == StatusPublished
}

// OwnedBy reports whether userID authored the post.
func (p Post) OwnedBy(userID int64) bool {
	return p.AuthorID == userID
}

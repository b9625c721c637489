package posts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrDenied reports that the acting user may not perform the
// requested operation on the post.
var ErrDenied = errors.New("posts: operation not allowed")

// Authorizer answers resource-level questions about posts. Policy is
// the production implementation.
type Authorizer interface {
	CanCreate(ctx context.Context, userID int64) (bool, error)
	CanEdit(ctx context.Context, userID int64, post Post) (bool, error)
	CanDelete(ctx context.Context, userID int64, post Post) (bool, error)
	CanPublish(ctx context.Context, userID int64, post Post) (bool, error)
}

// Service enforces the post policy around repository mutations.
type Service struct {
	repo   Repository
	policy Authorizer
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, policy Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, policy: policy, logger: logger, now: time.Now}
}

func (s *Service) ListPublished(ctx context.Context, limit, offset int) ([]Post, error) {
	return s.repo.ListPublished(ctx, limit, offset)
}

func (s *Service) ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error) {
	return s.repo.ListByAuthor(ctx, authorID, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (Post, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, authorID int64, title, body string) (Post, error) {
	allowed, err := s.policy.CanCreate(ctx, authorID)
	if err != nil {
		return Post{}, fmt.Errorf("create policy: %w", err)
	}
	if !allowed {
		return Post{}, ErrDenied
	}
	return s.repo.Create(ctx, Post{
		AuthorID: authorID,
		Title:    title,
		Slug:     slugify(title),
		Body:     body,
	})
}

func (s *Service) Update(ctx context.Context, userID, postID int64, title, body string) (Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	allowed, err := s.policy.CanEdit(ctx, userID, post)
	if err != nil {
		return Post{}, fmt.Errorf("edit policy: %w", err)
	}
	if !allowed {
		return Post{}, ErrDenied
	}
	post.Title = title
	post.Slug = slugify(title)
	post.Body = body
	return s.repo.Update(ctx, post)
}

func (s *Service) Delete(ctx context.Context, userID, postID int64) error {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	allowed, err := s.policy.CanDelete(ctx, userID, post)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if !allowed {
		return ErrDenied
	}
	return s.repo.Delete(ctx, postID)
}

func (s *Service) Publish(ctx context.Context, userID, postID int64) (Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	allowed, err := s.policy.CanPublish(ctx, userID, post)
	if err != nil {
		return Post{}, fmt.Errorf("publish policy: %w", err)
	}
	if !allowed {
		return Post{}, ErrDenied
	}
	if post.Published() {
		return post, nil
	}
	published, err := s.repo.Publish(ctx, postID, s.now())
	if err != nil {
		return Post{}, err
	}
	s.logger.Info("post published",
		slog.Int64("post_id", published.ID),
		slog.Int64("user_id", userID))
	return published, nil
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

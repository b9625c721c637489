package posts

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/inkwell/internal/shared"
)

type memoryRepository struct {
	posts  map[int64]Post
	nextID int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{posts: map[int64]Post{}, nextID: 1}
}

func (m *memoryRepository) Create(ctx context.Context, post Post) (Post, error) {
	post.ID = m.nextID
	m.nextID++
	if post.Status == "" {
		post.Status = StatusDraft
	}
	m.posts[post.ID] = post
	return post, nil
}

func (m *memoryRepository) FindByID(ctx context.Context, id int64) (Post, error) {
	post, ok := m.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	return post, nil
}

func (m *memoryRepository) ListPublished(ctx context.Context, limit, offset int) ([]Post, error) {
	var out []Post
	for _, p := range m.posts {
		if p.Published() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepository) ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error) {
	var out []Post
	for _, p := range m.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepository) Update(ctx context.Context, post Post) (Post, error) {
	if _, ok := m.posts[post.ID]; !ok {
		return Post{}, shared.ErrNotFound
	}
	m.posts[post.ID] = post
	return post, nil
}

func (m *memoryRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memoryRepository) Publish(ctx context.Context, id int64, at time.Time) (Post, error) {
	post, ok := m.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	post.Status = StatusPublished
	post.PublishedAt = &at
	m.posts[id] = post
	return post, nil
}

// stubPolicy allows everything unless a specific answer is recorded.
type stubPolicy struct {
	create  bool
	edit    bool
	del     bool
	publish bool
}

func allowAll() stubPolicy {
	return stubPolicy{create: true, edit: true, del: true, publish: true}
}

func (s stubPolicy) CanCreate(ctx context.Context, userID int64) (bool, error) {
	return s.create, nil
}

func (s stubPolicy) CanEdit(ctx context.Context, userID int64, post Post) (bool, error) {
	return s.edit, nil
}

func (s stubPolicy) CanDelete(ctx context.Context, userID int64, post Post) (bool, error) {
	return s.del, nil
}

func (s stubPolicy) CanPublish(ctx context.Context, userID int64, post Post) (bool, error) {
	return s.publish, nil
}

func TestCreateDeniedWithoutPermission(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepository(), stubPolicy{}, nil)

	_, err := svc.Create(ctx, 1, "Hello", "body")
	require.ErrorIs(t, err, ErrDenied)
}

func TestCreateSlugifiesTitle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepository(), allowAll(), nil)

	post, err := svc.Create(ctx, 1, "Hello, World! Again", "body")
	require.NoError(t, err)
	require.Equal(t, "hello-world-again", post.Slug)
	require.Equal(t, StatusDraft, post.Status)
}

func TestUpdateChecksPolicyAgainstStoredPost(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	seeded, err := repo.Create(ctx, Post{AuthorID: 1, Title: "Draft", Slug: "draft"})
	require.NoError(t, err)

	denied := NewService(repo, stubPolicy{create: true}, nil)
	_, err = denied.Update(ctx, 2, seeded.ID, "Stolen", "body")
	require.ErrorIs(t, err, ErrDenied)

	allowed := NewService(repo, allowAll(), nil)
	updated, err := allowed.Update(ctx, 1, seeded.ID, "New Title", "new body")
	require.NoError(t, err)
	require.Equal(t, "new-title", updated.Slug)
	require.Equal(t, "new body", updated.Body)
}

func TestUpdateMissingPostIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepository(), allowAll(), nil)

	_, err := svc.Update(ctx, 1, 99, "Title", "body")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRespectsPolicy(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	seeded, err := repo.Create(ctx, Post{AuthorID: 1, Title: "Draft"})
	require.NoError(t, err)

	svc := NewService(repo, stubPolicy{}, nil)
	require.ErrorIs(t, svc.Delete(ctx, 2, seeded.ID), ErrDenied)

	svc = NewService(repo, allowAll(), nil)
	require.NoError(t, svc.Delete(ctx, 1, seeded.ID))
	require.ErrorIs(t, svc.Delete(ctx, 1, seeded.ID), shared.ErrNotFound)
}

func TestPublishSetsTimestampOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	seeded, err := repo.Create(ctx, Post{AuthorID: 1, Title: "Draft"})
	require.NoError(t, err)

	svc := NewService(repo, allowAll(), nil)
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return when }

	published, err := svc.Publish(ctx, 1, seeded.ID)
	require.NoError(t, err)
	require.True(t, published.Published())
	require.NotNil(t, published.PublishedAt)
	require.Equal(t, when, *published.PublishedAt)

	// A second publish is a no-op keeping the original timestamp.
	svc.now = func() time.Time { return when.Add(time.Hour) }
	again, err := svc.Publish(ctx, 1, seeded.ID)
	require.NoError(t, err)
	require.Equal(t, when, *again.PublishedAt)
}

func TestPublishDeniedWithoutPermission(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	seeded, err := repo.Create(ctx, Post{AuthorID: 1, Title: "Draft"})
	require.NoError(t, err)

	svc := NewService(repo, stubPolicy{create: true, edit: true, del: true}, nil)
	_, err = svc.Publish(ctx, 1, seeded.ID)
	require.ErrorIs(t, err, ErrDenied)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":        "hello-world",
		"  Spaces   galore ": "spaces-galore",
		"Already-dashed":     "already-dashed",
		"Symbols!@#Between":  "symbols-between",
		"123 Numbers":        "123-numbers",
		"":                   "",
	}
	for in, want := range cases {
		require.Equal(t, want, slugify(in), "slugify(%q)", in)
	}
}

package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-press/inkwell/internal/shared"
)

// Repository abstracts post persistence.
type Repository interface {
	Create(ctx context.Context, post Post) (Post, error)
	FindByID(ctx context.Context, id int64) (Post, error)
	ListPublished(ctx context.Context, limit, offset int) ([]Post, error)
	ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error)
	Update(ctx context.Context, post Post) (Post, error)
	Delete(ctx context.Context, id int64) error
	Publish(ctx context.Context, id int64, at time.Time) (Post, error)
}

// PGRepository is the Postgres-backed Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const postColumns = "id, author_id, title, slug, body, status, published_at, created_at, updated_at"

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	var published pgtype.Timestamptz
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Slug, &p.Body, &p.Status,
		&published, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, shared.ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("scan post: %w", err)
	}
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
	return p, nil
}

func (r *PGRepository) Create(ctx context.Context, post Post) (Post, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO posts (author_id, title, slug, body, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+postColumns,
		post.AuthorID, post.Title, post.Slug, post.Body, StatusDraft)
	return scanPost(row)
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Post, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return scanPost(row)
}

func (r *PGRepository) ListPublished(ctx context.Context, limit, offset int) ([]Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = 'published'
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
}

func (r *PGRepository) ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE author_id = $3
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset), authorID)
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, post Post) (Post, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = $2, slug = $3, body = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+postColumns,
		post.ID, post.Title, post.Slug, post.Body)
	return scanPost(row)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Publish(ctx context.Context, id int64, at time.Time) (Post, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE posts
		SET status = 'published', published_at = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+postColumns, id, at)
	return scanPost(row)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

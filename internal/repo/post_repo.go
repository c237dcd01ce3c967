package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// PostRepo — репозиторий постов.
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo создаёт новый PostRepo.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// UpsertBatch сохраняет пачку постов. Ключ идемпотентности —
// (group_vk_id, vk_id), повторный прогон обновляет текст и счётчики.
// Возвращает число сохранённых записей.
func (r *PostRepo) UpsertBatch(ctx context.Context, posts []domain.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO posts (vk_id, group_vk_id, author_vk_id, text, comments_count, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (group_vk_id, vk_id) DO UPDATE
		SET text = EXCLUDED.text,
		    comments_count = EXCLUDED.comments_count
	`
	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(query, p.VkID, p.GroupVkID, p.AuthorVkID, p.Text, p.CommentsCount, p.PublishedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range posts {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upsert post: %w", err)
		}
	}
	return len(posts), nil
}

// ListByGroup возвращает посты группы, свежие первыми.
func (r *PostRepo) ListByGroup(ctx context.Context, groupVkID int64, limit, offset int) ([]domain.Post, error) {
	query := `
		SELECT id, vk_id, group_vk_id, author_vk_id, text, comments_count, published_at, created_at
		FROM posts
		WHERE group_vk_id = $1
		ORDER BY published_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, groupVkID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// CountByGroup возвращает число сохранённых постов группы.
func (r *PostRepo) CountByGroup(ctx context.Context, groupVkID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM posts WHERE group_vk_id = $1
	`, groupVkID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.VkID,
		&p.GroupVkID,
		&p.AuthorVkID,
		&p.Text,
		&p.CommentsCount,
		&p.PublishedAt,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &p, nil
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// CommentRepo — репозиторий комментариев.
type CommentRepo struct {
	pool *pgxpool.Pool
}

// NewCommentRepo создаёт новый CommentRepo.
func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// UpsertBatch сохраняет пачку комментариев. Ключ идемпотентности —
// (group_vk_id, vk_id). Возвращает число сохранённых записей.
func (r *CommentRepo) UpsertBatch(ctx context.Context, comments []domain.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO comments (vk_id, post_vk_id, group_vk_id, author_vk_id, parent_vk_id, text, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (group_vk_id, vk_id) DO UPDATE
		SET text = EXCLUDED.text
	`
	batch := &pgx.Batch{}
	for _, c := range comments {
		batch.Queue(query, c.VkID, c.PostVkID, c.GroupVkID, c.AuthorVkID, nullInt64(c.ParentVkID), c.Text, c.PublishedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range comments {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upsert comment: %w", err)
		}
	}
	return len(comments), nil
}

// ListByPost возвращает комментарии поста в порядке публикации.
func (r *CommentRepo) ListByPost(ctx context.Context, groupVkID, postVkID int64, limit, offset int) ([]domain.Comment, error) {
	query := `
		SELECT id, vk_id, post_vk_id, group_vk_id, author_vk_id, parent_vk_id, text, published_at, created_at
		FROM comments
		WHERE group_vk_id = $1 AND post_vk_id = $2
		ORDER BY published_at ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, groupVkID, postVkID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	var parentVkID *int64
	err := row.Scan(
		&c.ID,
		&c.VkID,
		&c.PostVkID,
		&c.GroupVkID,
		&c.AuthorVkID,
		&parentVkID,
		&c.Text,
		&c.PublishedAt,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	if parentVkID != nil {
		c.ParentVkID = *parentVkID
	}
	return &c, nil
}

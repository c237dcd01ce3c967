package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// AuthorRepo — репозиторий авторов постов и комментариев.
type AuthorRepo struct {
	pool *pgxpool.Pool
}

// NewAuthorRepo создаёт новый AuthorRepo.
func NewAuthorRepo(pool *pgxpool.Pool) *AuthorRepo {
	return &AuthorRepo{pool: pool}
}

// UpsertBatch сохраняет пачку авторов. Ключ — vk_id.
// Возвращает число сохранённых записей.
func (r *AuthorRepo) UpsertBatch(ctx context.Context, authors []domain.Author) (int, error) {
	if len(authors) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO authors (vk_id, first_name, last_name, photo_url, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (vk_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    photo_url = EXCLUDED.photo_url
	`
	batch := &pgx.Batch{}
	for _, a := range authors {
		batch.Queue(query, a.VkID, a.FirstName, a.LastName, nullString(a.PhotoURL))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range authors {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upsert author: %w", err)
		}
	}
	return len(authors), nil
}

// GetByVkID возвращает автора по VK ID.
func (r *AuthorRepo) GetByVkID(ctx context.Context, vkID int64) (*domain.Author, error) {
	query := `
		SELECT id, vk_id, first_name, last_name, photo_url, created_at
		FROM authors
		WHERE vk_id = $1
	`
	var a domain.Author
	var photoURL *string
	err := r.pool.QueryRow(ctx, query, vkID).Scan(
		&a.ID,
		&a.VkID,
		&a.FirstName,
		&a.LastName,
		&photoURL,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan author: %w", err)
	}
	if photoURL != nil {
		a.PhotoURL = *photoURL
	}
	return &a, nil
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// GroupRepo — репозиторий справочника VK-групп.
type GroupRepo struct {
	pool *pgxpool.Pool
}

// NewGroupRepo создаёт новый GroupRepo.
func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

// Upsert регистрирует группу в справочнике или обновляет её данные.
// Ключ — vk_id.
func (r *GroupRepo) Upsert(ctx context.Context, group *domain.Group) error {
	query := `
		INSERT INTO groups (vk_id, name, screen_name, wall_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vk_id) DO UPDATE
		SET name = EXCLUDED.name,
		    screen_name = EXCLUDED.screen_name,
		    wall_enabled = EXCLUDED.wall_enabled
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		group.VkID,
		group.Name,
		nullString(group.ScreenName),
		group.WallEnabled,
		group.CreatedAt,
	).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// GetByVkID возвращает группу по VK ID.
func (r *GroupRepo) GetByVkID(ctx context.Context, vkID int64) (*domain.Group, error) {
	query := `
		SELECT id, vk_id, name, screen_name, wall_enabled, created_at
		FROM groups
		WHERE vk_id = $1
	`
	return scanGroup(r.pool.QueryRow(ctx, query, vkID))
}

// ListAll возвращает все группы справочника в порядке регистрации.
func (r *GroupRepo) ListAll(ctx context.Context) ([]domain.Group, error) {
	query := `
		SELECT id, vk_id, name, screen_name, wall_enabled, created_at
		FROM groups
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

// ListByVkIDs возвращает группы по списку VK ID.
// Отсутствующие в справочнике ID просто не попадают в результат.
func (r *GroupRepo) ListByVkIDs(ctx context.Context, vkIDs []int64) ([]domain.Group, error) {
	query := `
		SELECT id, vk_id, name, screen_name, wall_enabled, created_at
		FROM groups
		WHERE vk_id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, vkIDs)
	if err != nil {
		return nil, fmt.Errorf("list groups by vk_ids: %w", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

// SetWallEnabled помечает доступность стены группы.
// Вызывается оркестратором, когда закрытая стена обнаружена во время парсинга.
func (r *GroupRepo) SetWallEnabled(ctx context.Context, vkID int64, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE groups SET wall_enabled = $2 WHERE vk_id = $1
	`, vkID, enabled)
	if err != nil {
		return fmt.Errorf("set wall_enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет группу из справочника.
func (r *GroupRepo) Delete(ctx context.Context, vkID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE vk_id = $1`, vkID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var g domain.Group
	var screenName *string

	err := row.Scan(
		&g.ID,
		&g.VkID,
		&g.Name,
		&screenName,
		&g.WallEnabled,
		&g.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}

	if screenName != nil {
		g.ScreenName = *screenName
	}

	return &g, nil
}

func collectGroups(rows pgx.Rows) ([]domain.Group, error) {
	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullInt64 возвращает nil для нулевого int64.
func nullInt64(i int64) *int64 {
	if i == 0 {
		return nil
	}
	return &i
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

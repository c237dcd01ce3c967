package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/andr-235/parseVK-sub006/internal/domain"
)

// ListGroups возвращает справочник групп.
// GET /api/v1/groups
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupRepo.ListAll(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]GroupResponse, len(groups))
	for i, g := range groups {
		result[i] = GroupFromDomain(g)
	}

	List(w, result, len(result))
}

// RegisterGroup регистрирует группу в справочнике (или обновляет её).
// POST /api/v1/groups
func (h *Handler) RegisterGroup(w http.ResponseWriter, r *http.Request) {
	var req RegisterGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.VkID <= 0 {
		BadRequest(w, "vk_id must be positive")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	wallEnabled := true
	if req.WallEnabled != nil {
		wallEnabled = *req.WallEnabled
	}

	group := &domain.Group{
		VkID:        req.VkID,
		Name:        req.Name,
		ScreenName:  req.ScreenName,
		WallEnabled: wallEnabled,
		CreatedAt:   time.Now(),
	}

	if err := h.groupRepo.Upsert(r.Context(), group); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, GroupFromDomain(*group))
}

// GetGroup возвращает группу по VK ID.
// GET /api/v1/groups/{vk_id}
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	vkID := parseIntOr(r.PathValue("vk_id"), 0)
	if vkID <= 0 {
		BadRequest(w, "invalid vk_id")
		return
	}

	group, err := h.groupRepo.GetByVkID(r.Context(), int64(vkID))
	if HandleRepoError(w, h.logger, err, "group not found") {
		return
	}

	Success(w, GroupFromDomain(*group))
}

// DeleteGroup удаляет группу из справочника.
// DELETE /api/v1/groups/{vk_id}
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	vkID := parseIntOr(r.PathValue("vk_id"), 0)
	if vkID <= 0 {
		BadRequest(w, "invalid vk_id")
		return
	}

	err := h.groupRepo.Delete(r.Context(), int64(vkID))
	if HandleRepoError(w, h.logger, err, "group not found") {
		return
	}

	NoContent(w)
}

package api

import (
	"net/http"
)

const defaultPageSize = 50

// ListGroupPosts возвращает сохранённые посты группы.
// GET /api/v1/groups/{vk_id}/posts?limit=...&offset=...
func (h *Handler) ListGroupPosts(w http.ResponseWriter, r *http.Request) {
	vkID := parseIntOr(r.PathValue("vk_id"), 0)
	if vkID <= 0 {
		BadRequest(w, "invalid vk_id")
		return
	}

	if _, err := h.groupRepo.GetByVkID(r.Context(), int64(vkID)); HandleRepoError(w, h.logger, err, "group not found") {
		return
	}

	limit := parseIntOr(r.URL.Query().Get("limit"), defaultPageSize)
	offset := parseIntOr(r.URL.Query().Get("offset"), 0)

	posts, err := h.postRepo.ListByGroup(r.Context(), int64(vkID), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	total, err := h.postRepo.CountByGroup(r.Context(), int64(vkID))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PostResponse, len(posts))
	for i, p := range posts {
		result[i] = PostFromDomain(p)
	}

	List(w, result, total)
}

// ListPostComments возвращает сохранённые комментарии поста.
// GET /api/v1/groups/{vk_id}/posts/{post_id}/comments?limit=...&offset=...
func (h *Handler) ListPostComments(w http.ResponseWriter, r *http.Request) {
	vkID := parseIntOr(r.PathValue("vk_id"), 0)
	if vkID <= 0 {
		BadRequest(w, "invalid vk_id")
		return
	}

	postVkID := parseIntOr(r.PathValue("post_id"), 0)
	if postVkID <= 0 {
		BadRequest(w, "invalid post_id")
		return
	}

	limit := parseIntOr(r.URL.Query().Get("limit"), defaultPageSize)
	offset := parseIntOr(r.URL.Query().Get("offset"), 0)

	comments, err := h.commentRepo.ListByPost(r.Context(), int64(vkID), int64(postVkID), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CommentResponse, len(comments))
	for i, c := range comments {
		result[i] = CommentFromDomain(c)
	}

	List(w, result, len(result))
}

package domain

import "time"

// Post — пост со стены группы в нормализованном виде.
//
// Ключ идемпотентности — пара (GroupVkID, VkID): повторный прогон
// задачи делает upsert, а не дубликат.
type Post struct {
	ID       int64 `json:"id"`
	VkID     int64 `json:"vk_id"`
	GroupVkID int64 `json:"group_vk_id"`

	// AuthorVkID — автор поста (отрицательный для постов от имени группы).
	AuthorVkID int64 `json:"author_vk_id"`

	Text string `json:"text"`

	// CommentsCount — число комментариев по данным VK на момент загрузки.
	CommentsCount int `json:"comments_count"`

	// PublishedAt — время публикации поста.
	PublishedAt time.Time `json:"published_at"`

	CreatedAt time.Time `json:"created_at"`
}

// Comment — комментарий к посту в плоском виде.
//
// Вложенные ветки (thread items) VK разворачиваются в плоский список;
// связь с родителем сохраняется в ParentVkID.
type Comment struct {
	ID        int64 `json:"id"`
	VkID      int64 `json:"vk_id"`
	PostVkID  int64 `json:"post_vk_id"`
	GroupVkID int64 `json:"group_vk_id"`

	// AuthorVkID — VK ID автора комментария.
	AuthorVkID int64 `json:"author_vk_id"`

	// ParentVkID — VK ID родительского комментария (0 для корневых).
	ParentVkID int64 `json:"parent_vk_id,omitempty"`

	Text string `json:"text"`

	// PublishedAt — время публикации комментария.
	PublishedAt time.Time `json:"published_at"`

	CreatedAt time.Time `json:"created_at"`
}

// Author — автор комментария или поста.
//
// Сохраняется один раз за прогон задачи, даже если встречается
// в нескольких комментариях (дедупликация в оркестраторе).
type Author struct {
	ID        int64  `json:"id"`
	VkID      int64  `json:"vk_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

package vk

// Типы ответов VK API в той форме, в которой их отдаёт сеть.
// Нормализация в доменные типы — обязанность оркестратора.

// WallPost — пост со стены (wall.get).
type WallPost struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	FromID  int64  `json:"from_id"`
	Date    int64  `json:"date"` // unix seconds
	Text    string `json:"text"`

	Comments struct {
		Count int `json:"count"`
	} `json:"comments"`
}

// WallPage — страница постов.
type WallPage struct {
	Count int        `json:"count"`
	Items []WallPost `json:"items"`
}

// CommentItem — комментарий (wall.getComments), возможно с вложенной веткой.
type CommentItem struct {
	ID      int64  `json:"id"`
	FromID  int64  `json:"from_id"`
	Date    int64  `json:"date"`
	Text    string `json:"text"`
	ReplyTo int64  `json:"reply_to_comment,omitempty"`

	// Thread — вложенная ветка ответов. VK отдаёт её деревом;
	// парсер разворачивает в плоский список с ограничением глубины.
	Thread *CommentThread `json:"thread,omitempty"`
}

// CommentThread — ветка ответов на комментарий.
type CommentThread struct {
	Count int           `json:"count"`
	Items []CommentItem `json:"items"`
}

// CommentPage — страница комментариев.
type CommentPage struct {
	Count int           `json:"count"`
	Items []CommentItem `json:"items"`
}

// UserProfile — профиль пользователя (users.get).
type UserProfile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Photo100  string `json:"photo_100,omitempty"`
}

// GroupInfo — информация о группе (groups.getById).
type GroupInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name,omitempty"`
}

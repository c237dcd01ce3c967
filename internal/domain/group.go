package domain

import "time"

// Group — VK-группа из локального справочника.
//
// Справочник групп — внешний по отношению к парсеру: ядро его
// только читает, записи создаются через API регистрации групп.
type Group struct {
	// ID — локальный идентификатор.
	ID int64 `json:"id"`

	// VkID — идентификатор группы в VK (положительное число).
	VkID int64 `json:"vk_id"`

	// Name — название группы.
	Name string `json:"name"`

	// ScreenName — короткое имя (vk.com/<screen_name>).
	ScreenName string `json:"screen_name,omitempty"`

	// WallEnabled — открыта ли стена группы.
	// Закрытая стена обнаруживается и во время парсинга — такая
	// группа пропускается, а не валит задачу.
	WallEnabled bool `json:"wall_enabled"`

	// CreatedAt — время регистрации группы в справочнике.
	CreatedAt time.Time `json:"created_at"`
}

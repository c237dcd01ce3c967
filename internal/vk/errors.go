package vk

import (
	"errors"
	"fmt"
)

// Коды ошибок VK API, значимые для парсера.
//
// Полный справочник: https://dev.vk.com/reference/errors
const (
	CodeUnknown           = 1   // временная неизвестная ошибка
	CodeAuthFailed        = 5   // авторизация не удалась
	CodeTooManyRequests   = 6   // превышен лимит запросов в секунду
	CodePermissionDenied  = 7   // нет прав на операцию
	CodeFloodControl      = 9   // flood control
	CodeInternalError     = 10  // внутренняя ошибка сервера VK
	CodeAccessDenied      = 15  // доступ запрещён (в т.ч. "wall is disabled")
	CodePageBlocked       = 18  // страница удалена или заблокирована
	CodeParamError        = 100 // неверный параметр
	CodeGroupAccessDenied = 203 // нет доступа к группе
)

// APIError — структурированная ошибка VK API.
//
// Числовой код используется политикой retry (transient или терминальная)
// и оркестратором (правило пропуска группы с закрытой стеной).
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// IsTransient классифицирует ошибку как временную.
//
// Временные ошибки VK (лимит, flood, внутренняя ошибка) повторяются
// с backoff'ом; ошибки транспорта (сеть, таймаут) — тоже.
// Ошибки авторизации/прав/параметров — терминальные.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeUnknown, CodeTooManyRequests, CodeFloodControl, CodeInternalError:
			return true
		default:
			return false
		}
	}
	// Не-APIError — инфраструктурная ошибка транспорта, повторяем.
	return err != nil
}

// IsWallDisabled распознаёт ошибку класса "стена закрыта":
// группа пропускается, задача продолжается.
func IsWallDisabled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeAccessDenied || apiErr.Code == CodeGroupAccessDenied
}

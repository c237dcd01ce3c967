// Package vk — клиент VK API.
//
// Клиент отвечает за транспорт и конверты ответов; все вызовы идут
// через gateway (rate limiter → breaker → retry), так что у парсера
// нет пути к VK в обход слоя устойчивости.
package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andr-235/parseVK-sub006/internal/gateway"
	"github.com/andr-235/parseVK-sub006/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultBaseURL = "https://api.vk.com"
	DefaultVersion = "5.131"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB

	// CommentPageSize — фиксированный размер страницы комментариев.
	CommentPageSize = 100

	// PostPageSize — максимальный размер страницы wall.get.
	PostPageSize = 100

	// threadItemsCount — сколько ответов ветки запрашивать на комментарий.
	threadItemsCount = 10
)

// Client — клиент VK API.
type Client struct {
	httpClient *http.Client
	gw         *gateway.Gateway
	baseURL    string
	token      string
	version    string
	logger     *slog.Logger
}

// ClientConfig — конфигурация Client.
type ClientConfig struct {
	// BaseURL — адрес API (default: https://api.vk.com).
	BaseURL string

	// Token — access token сервисного приложения.
	Token string

	// Version — версия VK API (default: 5.131).
	Version string

	// Gateway — слой устойчивости. Обязателен в продакшене;
	// nil допустим в тестах (вызовы идут напрямую).
	Gateway *gateway.Gateway

	// HTTPClient — переопределение транспорта (опционально).
	HTTPClient *http.Client

	// Logger
	Logger *slog.Logger
}

// NewClient создаёт новый Client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		gw:         cfg.Gateway,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		version:    version,
		logger:     logger,
	}
}

// GroupsGetByID возвращает информацию о группах по их VK ID.
func (c *Client) GroupsGetByID(ctx context.Context, vkIDs []int64) ([]GroupInfo, error) {
	params := url.Values{}
	params.Set("group_ids", joinIDs(vkIDs))

	var groups []GroupInfo
	if err := c.call(ctx, "groups.getById", params, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// WallGet возвращает страницу постов со стены группы.
// groupVkID — положительный VK ID группы; owner_id передаётся со знаком минус.
func (c *Client) WallGet(ctx context.Context, groupVkID int64, offset, count int) (*WallPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(-groupVkID, 10))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(count))

	var page WallPage
	if err := c.call(ctx, "wall.get", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// WallGetComments возвращает страницу комментариев к посту,
// включая вложенные ветки ответов.
func (c *Client) WallGetComments(ctx context.Context, groupVkID, postVkID int64, offset, count int) (*CommentPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(-groupVkID, 10))
	params.Set("post_id", strconv.FormatInt(postVkID, 10))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(count))
	params.Set("sort", "asc")
	params.Set("thread_items_count", strconv.Itoa(threadItemsCount))

	var page CommentPage
	if err := c.call(ctx, "wall.getComments", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UsersGet возвращает профили пользователей.
func (c *Client) UsersGet(ctx context.Context, vkIDs []int64) ([]UserProfile, error) {
	params := url.Values{}
	params.Set("user_ids", joinIDs(vkIDs))
	params.Set("fields", "photo_100")

	var users []UserProfile
	if err := c.call(ctx, "users.get", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// envelope — конверт ответа VK API: либо response, либо error.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// call выполняет метод VK API через gateway и декодирует ответ в out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	fn := func(ctx context.Context) error {
		return c.request(ctx, method, params, out)
	}

	var err error
	if c.gw != nil {
		err = c.gw.Do(ctx, fn)
	} else {
		err = fn(ctx)
	}

	telemetry.ObserveVKRequest(method, classifyResult(err))
	return err
}

// classifyResult сводит исход вызова к метке для метрик.
func classifyResult(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "api_error"
	}
	return "transport_error"
}

// request — один HTTP-вызов метода VK API без защитного слоя.
func (c *Client) request(ctx context.Context, method string, params url.Values, out any) error {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("access_token", c.token)
	q.Set("v", c.version)

	reqURL := fmt.Sprintf("%s/method/%s?%s", c.baseURL, method, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", method, err)
	}

	if env.Error != nil {
		return fmt.Errorf("%s: %w", method, env.Error)
	}

	if out != nil && env.Response != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", method, err)
		}
	}

	return nil
}

// joinIDs сериализует список ID в строку через запятую.
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

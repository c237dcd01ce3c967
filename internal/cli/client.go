package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача парсинга из API.
type TaskResponse struct {
	ID                string  `json:"id"`
	Scope             string  `json:"scope"`
	GroupIDs          []int64 `json:"group_ids,omitempty"`
	PostLimit         int     `json:"post_limit"`
	Status            string  `json:"status"`
	ProcessedItems    int     `json:"processed_items"`
	TotalItems        int     `json:"total_items"`
	PostsSaved        int     `json:"posts_saved"`
	CommentsSaved     int     `json:"comments_saved"`
	AuthorsSaved      int     `json:"authors_saved"`
	Errors            int     `json:"errors"`
	SkippedGroupVkIDs []int64 `json:"skipped_group_vk_ids,omitempty"`
	Error             string  `json:"error,omitempty"`
	StartedAt         string  `json:"started_at,omitempty"`
	FinishedAt        string  `json:"finished_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// TaskEventResponse — событие жизненного цикла задачи из API.
type TaskEventResponse struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// GroupResponse — группа VK из API.
type GroupResponse struct {
	ID          int64  `json:"id"`
	VkID        int64  `json:"vk_id"`
	Name        string `json:"name"`
	ScreenName  string `json:"screen_name,omitempty"`
	WallEnabled bool   `json:"wall_enabled"`
	CreatedAt   string `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Scope       string  `json:"scope"`
	GroupIDs    []int64 `json:"group_ids,omitempty"`
	PostLimit   int     `json:"post_limit"`
	CronExpr    string  `json:"cron_expr,omitempty"`
	IntervalSec int     `json:"interval_sec,omitempty"`
	Timezone    string  `json:"timezone"`
	Enabled     bool    `json:"enabled"`
	NextDueAt   string  `json:"next_due_at,omitempty"`
	LastRunAt   string  `json:"last_run_at,omitempty"`
	LastTaskID  string  `json:"last_task_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// --- Request types ---

// CreateTaskRequest — создание задачи парсинга.
type CreateTaskRequest struct {
	Scope     string  `json:"scope"`
	GroupIDs  []int64 `json:"group_ids,omitempty"`
	PostLimit int     `json:"post_limit"`
}

// CancelTaskRequest — отмена задачи.
type CancelTaskRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RegisterGroupRequest — регистрация группы VK.
type RegisterGroupRequest struct {
	VkID       int64  `json:"vk_id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name,omitempty"`
}

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	Name        string  `json:"name,omitempty"`
	Scope       string  `json:"scope"`
	GroupIDs    []int64 `json:"group_ids,omitempty"`
	PostLimit   int     `json:"post_limit"`
	CronExpr    string  `json:"cron_expr,omitempty"`
	IntervalSec int     `json:"interval_sec,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// UpdateScheduleRequest — обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
	PostLimit   *int    `json:"post_limit,omitempty"`
}

// ListTasksOpts — параметры фильтрации задач.
type ListTasksOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для parseVK API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает список задач с фильтрацией.
func (c *Client) ListTasks(opts ListTasksOpts) ([]TaskResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask создаёт задачу парсинга.
func (c *Client) CreateTask(req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks", req, &task)
	return &task, err
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// CancelTask запрашивает отмену задачи.
func (c *Client) CancelTask(id, reason string) error {
	var body any
	if reason != "" {
		body = CancelTaskRequest{Reason: reason}
	}
	return c.doData(http.MethodPost, "/api/v1/tasks/"+id+"/cancel", body, nil)
}

// ResumeTask возобновляет проваленную задачу.
func (c *Client) ResumeTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks/"+id+"/resume", nil, &task)
	return &task, err
}

// DeleteTask удаляет задачу.
func (c *Client) DeleteTask(id string) error {
	return c.delete("/api/v1/tasks/" + id)
}

// ListTaskEvents возвращает события задачи.
func (c *Client) ListTaskEvents(taskID string) ([]TaskEventResponse, error) {
	var events []TaskEventResponse
	err := c.list("/api/v1/tasks/"+taskID+"/events", nil, &events)
	return events, err
}

// --- Groups ---

// ListGroups возвращает все зарегистрированные группы.
func (c *Client) ListGroups() ([]GroupResponse, error) {
	var groups []GroupResponse
	err := c.list("/api/v1/groups", nil, &groups)
	return groups, err
}

// RegisterGroup регистрирует группу VK.
func (c *Client) RegisterGroup(req RegisterGroupRequest) (*GroupResponse, error) {
	var group GroupResponse
	err := c.post("/api/v1/groups", req, &group)
	return &group, err
}

// GetGroup возвращает группу по VK ID.
func (c *Client) GetGroup(vkID int64) (*GroupResponse, error) {
	var group GroupResponse
	err := c.get(fmt.Sprintf("/api/v1/groups/%d", vkID), &group)
	return &group, err
}

// DeleteGroup удаляет группу.
func (c *Client) DeleteGroup(vkID int64) error {
	return c.delete(fmt.Sprintf("/api/v1/groups/%d", vkID))
}

// --- Schedules ---

// ListSchedules возвращает расписания.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт расписание перепарсинга.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает расписание.
func (c *Client) EnableSchedule(id string) error {
	body := map[string]bool{"enabled": true}
	return c.doData(http.MethodPut, "/api/v1/schedules/"+id+"/enabled", body, nil)
}

// DisableSchedule выключает расписание.
func (c *Client) DisableSchedule(id string) error {
	body := map[string]bool{"enabled": false}
	return c.doData(http.MethodPut, "/api/v1/schedules/"+id+"/enabled", body, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}

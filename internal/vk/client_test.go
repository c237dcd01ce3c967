package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// vkServer поднимает mock VK API, отвечающий по одному handler'у на метод.
func vkServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for method, h := range handlers {
		mux.HandleFunc("/method/"+method, h)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func respond(w http.ResponseWriter, response any) {
	json.NewEncoder(w).Encode(map[string]any{"response": response})
}

func respondError(w http.ResponseWriter, code int, msg string) {
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"error_code": code, "error_msg": msg},
	})
}

func TestClient_WallGet(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"wall.get": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("owner_id") != "-123" {
				t.Errorf("owner_id must be negated group id, got %s", q.Get("owner_id"))
			}
			if q.Get("access_token") != "secret" {
				t.Errorf("missing access token")
			}
			if q.Get("count") != "50" || q.Get("offset") != "10" {
				t.Errorf("unexpected paging: count=%s offset=%s", q.Get("count"), q.Get("offset"))
			}
			respond(w, WallPage{
				Count: 2,
				Items: []WallPost{
					{ID: 1, Text: "first", Date: 1700000000},
					{ID: 2, Text: "second", Date: 1700000100},
				},
			})
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	page, err := client.WallGet(context.Background(), 123, 10, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Count != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: count=%d items=%d", page.Count, len(page.Items))
	}
	if page.Items[0].Text != "first" {
		t.Errorf("expected first post text, got %q", page.Items[0].Text)
	}
}

func TestClient_APIError(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"wall.get": func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, CodeAccessDenied, "Access denied: wall is disabled")
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	_, err := client.WallGet(context.Background(), 123, 0, 100)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != CodeAccessDenied {
		t.Errorf("expected code %d, got %d", CodeAccessDenied, apiErr.Code)
	}
	if !IsWallDisabled(err) {
		t.Error("code 15 must classify as wall disabled")
	}
}

func TestClient_WallGetComments_Thread(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"wall.getComments": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("post_id") != "77" {
				t.Errorf("unexpected post_id %s", r.URL.Query().Get("post_id"))
			}
			respond(w, CommentPage{
				Count: 1,
				Items: []CommentItem{
					{
						ID:   10,
						Text: "root",
						Thread: &CommentThread{
							Count: 1,
							Items: []CommentItem{{ID: 11, Text: "reply", ReplyTo: 10}},
						},
					},
				},
			})
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	page, err := client.WallGetComments(context.Background(), 123, 77, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(page.Items))
	}
	thread := page.Items[0].Thread
	if thread == nil || len(thread.Items) != 1 || thread.Items[0].ID != 11 {
		t.Error("nested thread must survive decoding")
	}
}

func TestClient_GroupsGetByID(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"groups.getById": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("group_ids") != "123,456" {
				t.Errorf("unexpected group_ids %s", r.URL.Query().Get("group_ids"))
			}
			respond(w, []GroupInfo{
				{ID: 123, Name: "Новости", ScreenName: "news_club"},
				{ID: 456, Name: "Барахолка"},
			})
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	groups, err := client.GroupsGetByID(context.Background(), []int64{123, 456})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[0].ScreenName != "news_club" {
		t.Errorf("unexpected groups: %+v", groups)
	}
}

func TestClient_UsersGet(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"users.get": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("user_ids") != "1,2,3" {
				t.Errorf("unexpected user_ids %s", r.URL.Query().Get("user_ids"))
			}
			respond(w, []UserProfile{
				{ID: 1, FirstName: "Ivan", LastName: "Petrov"},
				{ID: 2, FirstName: "Anna", LastName: "Sidorova"},
			})
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	users, err := client.UsersGet(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 || users[0].FirstName != "Ivan" {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestClient_MalformedEnvelope(t *testing.T) {
	server := vkServer(t, map[string]http.HandlerFunc{
		"wall.get": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		},
	})

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	_, err := client.WallGet(context.Background(), 123, 0, 100)
	if err == nil {
		t.Fatal("expected decode error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("decode failure must not classify as API error")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		code      int
		transient bool
	}{
		{CodeUnknown, true},
		{CodeTooManyRequests, true},
		{CodeFloodControl, true},
		{CodeInternalError, true},
		{CodeAuthFailed, false},
		{CodePermissionDenied, false},
		{CodeAccessDenied, false},
		{CodeParamError, false},
	}

	for _, c := range cases {
		err := fmt.Errorf("wall.get: %w", &APIError{Code: c.code, Message: "x"})
		if got := IsTransient(err); got != c.transient {
			t.Errorf("code %d: IsTransient = %v, want %v", c.code, got, c.transient)
		}
	}

	if !IsTransient(errors.New("connection refused")) {
		t.Error("transport errors must be transient")
	}
	if IsTransient(nil) {
		t.Error("nil must not be transient")
	}
}

func TestClassifyResult(t *testing.T) {
	if got := classifyResult(nil); got != "ok" {
		t.Errorf("nil = %q, want ok", got)
	}
	if got := classifyResult(fmt.Errorf("m: %w", &APIError{Code: 5})); got != "api_error" {
		t.Errorf("api error = %q, want api_error", got)
	}
	if got := classifyResult(errors.New("dial tcp: timeout")); got != "transport_error" {
		t.Errorf("transport = %q, want transport_error", got)
	}
}

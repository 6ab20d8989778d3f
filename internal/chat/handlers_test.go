package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/askmeter/internal/subscription"
	"github.com/mbd888/askmeter/internal/user"
)

func setupHandlerTest(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	handler := NewHandler(f.svc)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return r, f
}

func askRequest(router *gin.Engine, userID, question string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"userId": userID, "question": question})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/chat/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Ask_200(t *testing.T) {
	router, f := setupHandlerTest(t)
	f.addUser(t, "usr_1", 0)

	w := askRequest(router, "usr_1", "why is the sky blue?")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message ChatMessage `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !strings.HasPrefix(resp.Message.ID, "msg_") {
		t.Errorf("expected msg_ ID, got %q", resp.Message.ID)
	}
	if !resp.Message.IsFreeMessage {
		t.Error("expected free-tier message")
	}
}

func TestHandler_Ask_Statuses(t *testing.T) {
	router, f := setupHandlerTest(t)
	f.addUser(t, "usr_free_gone", user.FreeMessageLimit)
	f.addUser(t, "usr_exhausted", user.FreeMessageLimit)
	f.addBundle(t, "sub_1", "usr_exhausted", subscription.TypeBasic, 10)

	cases := []struct {
		name   string
		userID string
		want   int
	}{
		{"unknown user", "usr_ghost", http.StatusNotFound},
		{"no bundles", "usr_free_gone", http.StatusPaymentRequired},
		{"all exhausted", "usr_exhausted", http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := askRequest(router, tc.userID, "hello?")
			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_Ask_Validation(t *testing.T) {
	router, f := setupHandlerTest(t)
	f.addUser(t, "usr_1", 0)

	w := askRequest(router, "", "hello?")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing userId, got %d", w.Code)
	}

	w = askRequest(router, "usr_1", strings.Repeat("x", 5000))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversize question, got %d", w.Code)
	}
}

func TestHandler_History(t *testing.T) {
	router, f := setupHandlerTest(t)
	f.addUser(t, "usr_1", 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		f.now = f.now.Add(time.Minute)
		if _, err := f.svc.Ask(ctx, "usr_1", "q"); err != nil {
			t.Fatal(err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/chat/history/usr_1?limit=1", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Messages   []ChatMessage `json:"messages"`
		Count      int           `json:"count"`
		NextCursor string        `json:"nextCursor"`
		HasMore    bool          `json:"hasMore"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 message with limit=1, got %d", resp.Count)
	}
	if !resp.HasMore || resp.NextCursor == "" {
		t.Errorf("expected a continuation cursor, got hasMore=%v cursor=%q", resp.HasMore, resp.NextCursor)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/chat/history/usr_1?limit=1&cursor="+resp.NextCursor, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for second page, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/chat/history/usr_1?limit=abc", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/chat/history/usr_1?cursor=%25%25", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad cursor, got %d", w.Code)
	}
}

package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter() (*gin.Engine, *Service, *MemoryStore) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	svc := NewService(store, NewMemoryHistoryStore(), &scriptedProcessor{}, nil)
	handler := NewHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return r, svc, store
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateBundle_201(t *testing.T) {
	router, _, _ := setupHandlerTestRouter()

	w := doJSON(router, "POST", "/v1/subscriptions", map[string]interface{}{
		"userId":       "usr_1",
		"bundleType":   "Pro",
		"billingCycle": "monthly",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Bundle Bundle `json:"bundle"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Bundle.ID == "" {
		t.Error("expected generated bundle ID")
	}
	if resp.Bundle.MaxMessages != 100 {
		t.Errorf("expected Pro ceiling 100, got %d", resp.Bundle.MaxMessages)
	}
	if !resp.Bundle.AutoRenew {
		t.Error("expected auto-renew on by default")
	}
}

func TestHandler_CreateBundle_Validation(t *testing.T) {
	router, _, _ := setupHandlerTestRouter()

	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"missing user", map[string]interface{}{"bundleType": "Pro", "billingCycle": "monthly"}},
		{"bad type", map[string]interface{}{"userId": "usr_1", "bundleType": "Platinum", "billingCycle": "monthly"}},
		{"bad cycle", map[string]interface{}{"userId": "usr_1", "bundleType": "Pro", "billingCycle": "weekly"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/v1/subscriptions", tc.payload)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_GetBundle(t *testing.T) {
	router, svc, _ := setupHandlerTestRouter()

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly,
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, "GET", "/v1/subscriptions/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, "GET", "/v1/subscriptions/sub_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestHandler_ListBundles(t *testing.T) {
	router, svc, _ := setupHandlerTestRouter()
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly}); err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypePro, Cycle: CycleYearly})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, "GET", "/v1/subscriptions/user/usr_1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Bundles []Bundle `json:"bundles"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 bundles, got %d", resp.Count)
	}

	// Cancelling stops auto-renew but the bundle stays in the active listing.
	if _, err := svc.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	w = doJSON(router, "GET", "/v1/subscriptions/user/usr_1/active", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("cancel keeps bundles active, expected 2, got %d", resp.Count)
	}
}

func TestHandler_ToggleAutoRenew(t *testing.T) {
	router, svc, _ := setupHandlerTestRouter()

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly,
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, "PATCH", "/v1/subscriptions/"+b.ID+"/auto-renew",
		map[string]interface{}{"autoRenew": false})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Bundle Bundle `json:"bundle"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Bundle.AutoRenew {
		t.Error("expected auto-renew off")
	}

	w = doJSON(router, "PATCH", "/v1/subscriptions/"+b.ID+"/auto-renew",
		map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing autoRenew, got %d", w.Code)
	}
}

func TestHandler_CancelBundle(t *testing.T) {
	router, svc, _ := setupHandlerTestRouter()

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly,
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, "DELETE", "/v1/subscriptions/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, "DELETE", "/v1/subscriptions/sub_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = doJSON(router, "GET", "/v1/subscriptions/user/usr_1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		History []UsageHistory `json:"history"`
		Count   int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 history entry after cancel, got %d", resp.Count)
	}
}

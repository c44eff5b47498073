package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"ucmmm/models"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	initDB()
	_ = os.Setenv("SCHEDULE_DROP_DIR", t.TempDir())
	seedDB()
	r := gin.Default()
	setupRoutes(r)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass12"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		b := resp.Body.String()
		t.Fatalf("register failed status=%d body=%s", resp.Code, b)
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass12"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("login failed status=%d body=%s", resp.Code, b)
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Cached schedule lookup for a seeded week
	db.Create(&models.WeekImage{URL: "https://example.edu/page/images/8-25-8-31.png", Label: "8/25 - 8/31", WeekStart: "2025-08-25", WeekEnd: "2025-08-31"})
	db.Create(&models.TruckScheduleEntry{WeekStart: "2025-08-25", Day: "mon", Truck: "Taco Truck", Start: "11:00", End: "14:00", ImageURL: "https://example.edu/page/images/8-25-8-31.png"})
	resp = performRequest(r, http.MethodGet, "/foodtrucks/schedule?week_start=2025-08-25", nil, "", "")
	if resp.Code != 200 {
		t.Fatalf("get schedule failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var sched struct {
		WeekStart string           `json:"week_start"`
		Entries   []map[string]any `json:"entries"`
		ImageURL  string           `json:"image_url"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &sched)
	if sched.WeekStart != "2025-08-25" || len(sched.Entries) != 1 {
		t.Fatalf("unexpected schedule payload: %s", resp.Body.String())
	}

	// 4. Proxy rejects foreign hosts
	resp = performRequest(r, http.MethodGet, "/proxy/image?url=https://evil.example.com/x.png", nil, "", "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign proxy host got %d", resp.Code)
	}

	// 5. Unauthorized access to protected endpoints should be 401
	for _, path := range []string{"/foodtrucks/ocr", "/foodtrucks/schedule"} {
		unauth := performRequest(r, http.MethodPost, path, nil, "", "")
		if unauth.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for unauthorized POST %s got %d", path, unauth.Code)
		}
	}

	// 6. Submit client-extracted entries: valid rows insert, bad day and
	// blank truck are skipped, and resubmitting inserts nothing new.
	submitBody, _ := json.Marshal(map[string]any{
		"week_start": "2025-09-01",
		"image_url":  "https://example.edu/page/images/9-1-9-7.png",
		"entries": []map[string]string{
			{"truck": "Burger Bus", "day": "tue", "start": "11:00", "end": "14:00"},
			{"truck": "Pizza Wagon", "day": "Wednesday", "start": "17:00", "end": "20:00"},
			{"truck": "Mystery Van", "day": "someday"},
			{"truck": "   ", "day": "fri"},
		},
	})
	resp = performRequest(r, http.MethodPost, "/foodtrucks/schedule", bytes.NewBuffer(submitBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("submit failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var submitResp struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &submitResp)
	if submitResp.Inserted != 2 || submitResp.Skipped != 2 {
		t.Fatalf("expected inserted=2 skipped=2 got %s", resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/foodtrucks/schedule", bytes.NewBuffer(submitBody), token, "application/json")
	_ = json.Unmarshal(resp.Body.Bytes(), &submitResp)
	if resp.Code != 200 || submitResp.Inserted != 0 {
		t.Fatalf("resubmit should insert 0, got %s", resp.Body.String())
	}
	var count int64
	db.Model(&models.TruckScheduleEntry{}).Where("week_start = ?", "2025-09-01").Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 cached rows for week got %d", count)
	}

	// 7. Non-admin cannot purge
	resp = performRequest(r, http.MethodDelete, "/foodtrucks/schedule?week_start=2025-08-25", nil, token, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin purge got %d", resp.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}

package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"prizedraw/internal/draw"
	"prizedraw/internal/models"
	"prizedraw/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := services.NewDrawService(services.Options{
		MaxWinners: 3,
		MaxDepth:   2,
		Rand:       draw.NewRand(5),
	})
	h := NewHTTPHandler(service, nil)

	r := gin.New()
	h.RegisterPublicRoutes(r)
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(h.TenantMiddleware())
	h.RegisterTenantRoutes(tenantRoutes)
	return r
}

func do(r *gin.Engine, method, path, tenant string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Fatalf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
	return v
}

func uploadCSV(r *gin.Engine, tenant, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("poolCSV", "pool.csv")
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/pool/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(tenantHeader, tenant)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/health", "", nil)
	assertStatus(t, w, http.StatusOK)
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}

	w = do(r, http.MethodGet, "/attempts", "", nil)
	assertStatus(t, w, http.StatusOK)
	attempts := decode[[]models.AttemptOption](t, w)
	if len(attempts) != 3 || attempts[0].Label != "first attempt" {
		t.Errorf("unexpected attempts %+v", attempts)
	}
}

func TestTenantMiddleware_IssuesCookie(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/pool", "", nil)
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Header().Get("Set-Cookie"), tenantCookie+"=") {
		t.Errorf("Expected a tenant cookie, got %q", w.Header().Get("Set-Cookie"))
	}

	w = do(r, http.MethodGet, "/pool", "known", nil)
	if w.Header().Get("Set-Cookie") != "" {
		t.Error("Expected no cookie when the tenant header is present")
	}
}

func TestDrawFlow(t *testing.T) {
	r := newTestRouter(t)
	const tenantID = "shop-1"

	csvBody := strings.Join([]string{
		"participant_id,display_name,contact_handle,content",
		"u1,Alice,alice@example.com,one",
		"u1,Alice,alice@example.com,two",
		"u2,Bob,bob@example.com,three",
		",Anon,,four",
	}, "\n")
	w := uploadCSV(r, tenantID, csvBody)
	assertStatus(t, w, http.StatusOK)
	pool := decode[models.PoolResponse](t, w)
	if len(pool.Entries) != 4 || pool.DistinctParticipants != 2 {
		t.Fatalf("unexpected pool %+v", pool)
	}

	w = do(r, http.MethodPost, "/pool/entries", tenantID, models.Entry{ParticipantID: "u3", DisplayName: "Carol"})
	assertStatus(t, w, http.StatusCreated)

	w = do(r, http.MethodPost, "/draws", tenantID, models.StartDrawRequest{Count: 3, Depth: 2})
	assertStatus(t, w, http.StatusCreated)
	view := decode[models.DrawView](t, w)
	if view.State != "awaiting" || view.SelectedCount != 3 || view.Attempt != "third attempt" {
		t.Fatalf("unexpected view %+v", view)
	}

	for i, want := range []models.Outcome{models.OutcomeNonWinner, models.OutcomeNonWinner, models.OutcomeWinner, models.OutcomeWinner} {
		w = do(r, http.MethodPost, "/draws/advance", tenantID, nil)
		assertStatus(t, w, http.StatusOK)
		view = decode[models.DrawView](t, w)
		if view.Outcome != want {
			t.Fatalf("advance %d: expected %s, got %+v", i+1, want, view)
		}
	}
	if view.Position != 3 || view.State != "finalized" {
		t.Errorf("Expected finalized at position 3, got %+v", view)
	}

	w = do(r, http.MethodPost, "/draws/fields/email/toggle", tenantID, nil)
	assertStatus(t, w, http.StatusOK)
	view = decode[models.DrawView](t, w)
	if !view.Visibility["email"] || strings.Contains(view.Fields["email"], "***") {
		t.Errorf("Expected email revealed, got %+v", view)
	}

	w = do(r, http.MethodGet, "/draws/current", tenantID, nil)
	assertStatus(t, w, http.StatusOK)

	w = do(r, http.MethodGet, "/draws/export.csv", tenantID, nil)
	assertStatus(t, w, http.StatusOK)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Expected CSV content type, got %q", w.Header().Get("Content-Type"))
	}
	if lines := strings.Count(w.Body.String(), "\n"); lines != 4 {
		t.Errorf("Expected header + 3 rows, got %d lines:\n%s", lines, w.Body.String())
	}

	w = do(r, http.MethodDelete, "/session", tenantID, nil)
	assertStatus(t, w, http.StatusNoContent)
	w = do(r, http.MethodGet, "/draws/current", tenantID, nil)
	assertStatus(t, w, http.StatusConflict)
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"advance without draw", http.MethodPost, "/draws/advance", nil, http.StatusConflict},
		{"export without draw", http.MethodGet, "/draws/export.csv", nil, http.StatusConflict},
		{"count above bound", http.MethodPost, "/draws", models.StartDrawRequest{Count: 4}, http.StatusBadRequest},
		{"depth above bound", http.MethodPost, "/draws", models.StartDrawRequest{Count: 3, Depth: 3}, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/draws", "not json", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/draws/fields/phone/toggle", nil, http.StatusBadRequest},
		{"entry without participant", http.MethodPost, "/pool/entries", models.Entry{DisplayName: "x"}, http.StatusBadRequest},
		{"load without ref", http.MethodPost, "/pool/load", models.LoadPoolRequest{}, http.StatusBadRequest},
		{"load without store", http.MethodPost, "/pool/load", models.LoadPoolRequest{Ref: "post-1"}, http.StatusNotImplemented},
		{"live disabled", http.MethodGet, "/live", nil, http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, "errors", tt.body)
			assertStatus(t, w, tt.status)
		})
	}
}

func TestNoParticipantsDraw(t *testing.T) {
	r := newTestRouter(t)
	w := uploadCSV(r, "empty", ",Anon,,hello\n , Ghost ,,boo\n")
	assertStatus(t, w, http.StatusOK)

	w = do(r, http.MethodPost, "/draws", "empty", models.StartDrawRequest{Count: 3, Depth: 0})
	assertStatus(t, w, http.StatusCreated)
	view := decode[models.DrawView](t, w)
	if view.State != "empty" || view.Outcome != models.OutcomeNoParticipants {
		t.Errorf("Expected empty draw, got %+v", view)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/librarease/assetgroups/internal/config"
	"github.com/librarease/assetgroups/internal/memstore"
	"github.com/librarease/assetgroups/internal/usecase"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:          "test",
		OTelServiceName: "assetgroups-test",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	sv := usecase.New(memstore.New(), discardLogger())
	return NewServer(testConfig(), sv, discardLogger()).RegisterRoutes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) ErrorRes {
	t.Helper()
	expectStatus(t, rec, status)
	res := decode[ErrorRes](t, rec)
	if res.Error != kind || res.Code != status {
		t.Fatalf("error body = %+v, want error %q code %d", res, kind, status)
	}
	return res
}

func TestAssetLifecycle(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/api/v1/assets", `{"name":"Asset 1","type":"Type 1","description":"d"}`)
	expectStatus(t, rec, http.StatusCreated)
	created := decode[Asset](t, rec)
	if created.ID == 0 || created.Version != 0 || created.Name != "Asset 1" || created.Type != "Type 1" {
		t.Fatalf("created = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/assets", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]Asset](t, rec); len(list) != 1 || list[0].Name != "Asset 1" {
		t.Fatalf("list = %+v, want [Asset 1]", list)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/assets/1", `{"name":"Asset 1b","type":"Type 2","version":0}`)
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[Asset](t, rec); updated.Version != 1 || updated.Name != "Asset 1b" {
		t.Fatalf("updated = %+v, want version 1 name Asset 1b", updated)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/assets/1", `{"name":"stale","type":"Type 2","version":0}`)
	expectError(t, rec, http.StatusConflict, string(usecase.KindConcurrencyConflict))

	rec = do(t, h, http.MethodPut, "/api/v1/assets/1", `{"name":"no version","type":"Type 2"}`)
	expectError(t, rec, http.StatusBadRequest, string(usecase.KindValidation))

	rec = do(t, h, http.MethodPut, "/api/v1/assets/77", `{"name":"n","type":"t","version":0}`)
	expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))

	rec = do(t, h, http.MethodDelete, "/api/v1/assets/1", "")
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodGet, "/api/v1/assets/1", "")
	res := expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))
	if res.Reason != "Asset with id 1 not found" {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"empty asset name", "/api/v1/assets", `{"name":"","type":"Type 1"}`, "Asset name cannot be empty"},
		{"missing asset type", "/api/v1/assets", `{"name":"Asset 1"}`, "Asset type cannot be empty"},
		{"empty group name", "/api/v1/groups", `{"description":"d"}`, "Group name cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			res := expectError(t, rec, http.StatusBadRequest, string(usecase.KindValidation))
			if res.Reason != tt.message {
				t.Fatalf("reason = %q, want %q", res.Reason, tt.message)
			}
		})
	}

	rec := do(t, h, http.MethodPost, "/api/v1/assets", `{"name":`)
	expectError(t, rec, http.StatusBadRequest, string(usecase.KindValidation))

	rec = do(t, h, http.MethodGet, "/api/v1/assets/abc", "")
	expectError(t, rec, http.StatusBadRequest, string(usecase.KindValidation))
}

func TestMembershipEndpoints(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	expectStatus(t, do(t, h, http.MethodPost, "/api/v1/assets", `{"name":"Asset 1","type":"Type 1"}`), http.StatusCreated)
	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"G"}`)
	expectStatus(t, rec, http.StatusCreated)
	if g := decode[Group](t, rec); g.ID != 1 || g.Version != 0 {
		t.Fatalf("group = %+v", g)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/groups/1/assets/1", "")
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, h, http.MethodPost, "/api/v1/groups/1/assets/1", "")
	expectError(t, rec, http.StatusConflict, string(usecase.KindConflict))

	rec = do(t, h, http.MethodGet, "/api/v1/groups/1/assets", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]Asset](t, rec); len(list) != 1 || list[0].Name != "Asset 1" {
		t.Fatalf("group assets = %+v, want [Asset 1]", list)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/assets/1?include_groups=true", "")
	expectStatus(t, rec, http.StatusOK)
	if a := decode[Asset](t, rec); len(a.GroupIDs) != 1 || a.GroupIDs[0] != 1 {
		t.Fatalf("asset = %+v, want group_ids [1]", a)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/groups/1", "")
	expectStatus(t, rec, http.StatusOK)
	if g := decode[Group](t, rec); g.Version != 1 || len(g.AssetIDs) != 1 {
		t.Fatalf("group = %+v, want version 1 with one asset", g)
	}

	rec = do(t, h, http.MethodDelete, "/api/v1/groups/1/assets/1", "")
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodDelete, "/api/v1/groups/1/assets/1", "")
	expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))

	rec = do(t, h, http.MethodGet, "/api/v1/groups/1/assets", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]Asset](t, rec); len(list) != 0 {
		t.Fatalf("group assets = %+v, want none", list)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/groups/1/assets/9999", "")
	expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))

	rec = do(t, h, http.MethodGet, "/api/v1/groups/9999/assets", "")
	expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))

	rec = do(t, h, http.MethodDelete, "/api/v1/assets/9999", "")
	expectError(t, rec, http.StatusNotFound, string(usecase.KindNotFound))

	rec = do(t, h, http.MethodDelete, "/api/v1/groups/1", "")
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodGet, "/api/v1/groups", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]Group](t, rec); len(list) != 0 {
		t.Fatalf("groups = %+v, want none", list)
	}
}

// failingService answers every call with err.
type failingService struct {
	Service
	err error
}

func (f failingService) ListAssets(context.Context) ([]usecase.Asset, error) {
	return nil, f.err
}

func (f failingService) Health() map[string]string {
	return map[string]string{"status": "down"}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"storage unavailable", usecase.StorageUnavailableError(errors.New("dial tcp: refused")), http.StatusServiceUnavailable, string(usecase.KindStorageUnavailable)},
		{"unrecognised error", errors.New("boom"), http.StatusInternalServerError, errInternal},
		{"concurrency conflict", usecase.ErrAssetVersionMismatch(1, 0), http.StatusConflict, string(usecase.KindConcurrencyConflict)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewServer(testConfig(), failingService{err: tt.err}, discardLogger()).RegisterRoutes()
			res := expectError(t, do(t, h, http.MethodGet, "/api/v1/assets", ""), tt.status, tt.kind)
			if strings.Contains(res.Reason, "dial tcp") || strings.Contains(res.Reason, "boom") {
				t.Fatalf("reason %q leaks the underlying error", res.Reason)
			}
		})
	}
}

func TestErrorPayloadShape(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/api/v1/groups/9", "")
	expectStatus(t, rec, http.StatusNotFound)

	body := decode[map[string]any](t, rec)
	want := map[string]any{
		"error":  string(usecase.KindNotFound),
		"reason": "Group with id 9 not found",
		"code":   float64(http.StatusNotFound),
	}
	if len(body) != len(want) {
		t.Fatalf("payload = %v, want keys error, reason, code", body)
	}
	for k, v := range want {
		if body[k] != v {
			t.Fatalf("payload[%q] = %v, want %v", k, body[k], v)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestHandler(t), http.MethodGet, "/api/health", "")
	expectStatus(t, rec, http.StatusOK)
	if stats := decode[map[string]string](t, rec); stats["status"] != "up" || stats["driver"] != "memory" {
		t.Fatalf("stats = %v", stats)
	}

	h := NewServer(testConfig(), failingService{}, discardLogger()).RegisterRoutes()
	expectStatus(t, do(t, h, http.MethodGet, "/api/health", ""), http.StatusServiceUnavailable)
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/api/v1/assets", "")
	if rec.Header().Get(config.HEADER_KEY_X_REQUEST_ID) == "" {
		t.Fatal("response has no request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil)
	req.Header.Set(config.HEADER_KEY_X_REQUEST_ID, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(config.HEADER_KEY_X_REQUEST_ID); got != "abc-123" {
		t.Fatalf("request id = %q, want the incoming one", got)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	sv := usecase.New(memstore.New(), discardLogger())
	h := NewServer(cfg, sv, discardLogger()).RegisterRoutes()

	expectStatus(t, do(t, h, http.MethodGet, "/api/v1/assets", ""), http.StatusOK)
	expectError(t, do(t, h, http.MethodGet, "/api/v1/assets", ""), http.StatusTooManyRequests, errRateLimited)

	// health checks are never limited
	expectStatus(t, do(t, h, http.MethodGet, "/api/health", ""), http.StatusOK)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goappforge/internal/api/middleware"
	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
	"github.com/bigkaa/goappforge/internal/service"
)

// --- Mocks ---

// mockAppRepo — мок репозитория приложений с настраиваемыми функциями.
type mockAppRepo struct {
	createFn     func(ctx context.Context, a *model.Application) error
	getVisibleFn func(ctx context.Context, id, requesterID string) (*model.Application, error)
	getOwnedFn   func(ctx context.Context, id, ownerID string) (*model.Application, error)
	updateFn     func(ctx context.Context, a *model.Application) error
	searchFn     func(ctx context.Context, requesterID string, params repository.AppSearchParams) ([]*model.Application, error)
	countFn      func(ctx context.Context, requesterID string, params repository.AppSearchParams) (int, error)
	softDeleteFn func(ctx context.Context, id, ownerID string) error
	publishFn    func(ctx context.Context, id, ownerID string) error
}

func (m *mockAppRepo) Create(ctx context.Context, a *model.Application) error {
	return m.createFn(ctx, a)
}

func (m *mockAppRepo) GetVisible(ctx context.Context, id, requesterID string) (*model.Application, error) {
	return m.getVisibleFn(ctx, id, requesterID)
}

func (m *mockAppRepo) GetOwned(ctx context.Context, id, ownerID string) (*model.Application, error) {
	return m.getOwnedFn(ctx, id, ownerID)
}

func (m *mockAppRepo) Update(ctx context.Context, a *model.Application) error {
	return m.updateFn(ctx, a)
}

func (m *mockAppRepo) Search(ctx context.Context, requesterID string, params repository.AppSearchParams) ([]*model.Application, error) {
	return m.searchFn(ctx, requesterID, params)
}

func (m *mockAppRepo) Count(ctx context.Context, requesterID string, params repository.AppSearchParams) (int, error) {
	return m.countFn(ctx, requesterID, params)
}

func (m *mockAppRepo) SoftDelete(ctx context.Context, id, ownerID string) error {
	return m.softDeleteFn(ctx, id, ownerID)
}

func (m *mockAppRepo) Publish(ctx context.Context, id, ownerID string) error {
	return m.publishFn(ctx, id, ownerID)
}

// mockGenerator — мок клиента генерации.
type mockGenerator struct {
	generateFn func(ctx context.Context, instruction string) ([]byte, error)
}

func (m *mockGenerator) Generate(ctx context.Context, instruction string) ([]byte, error) {
	return m.generateFn(ctx, instruction)
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// identityMiddleware подкладывает идентичность в контекст запроса,
// заменяя JWT middleware в тестах.
func identityMiddleware(identity *middleware.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity != nil {
				r = r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyIdentity, identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newAppsRouter собирает роутер маршрутов /v1/app/* с реальным сервисом
// над mock-репозиторием.
func newAppsRouter(repo repository.ApplicationRepository, gen service.Generator, identity *middleware.Identity) *chi.Mux {
	cache := service.NewCacheService(10, time.Minute)
	svc := service.NewApplicationService(repo, cache, gen, testLogger())
	h := NewApplicationsHandler(svc, testLogger())

	router := chi.NewRouter()
	router.Use(identityMiddleware(identity))
	router.Get("/v1/app/list", h.List)
	router.Get("/v1/app/load/{id}", h.Load)
	router.Post("/v1/app/modify", h.Modify)
	router.Delete("/v1/app/delete/{id}", h.Delete)
	router.Post("/v1/app/publish/{id}", h.Publish)
	router.Post("/v1/app/auto_generate", h.AutoGenerate)
	return router
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования тела ошибки: %v", err)
	}
	return resp.Error.Code
}

var testIdentity = &middleware.Identity{UserID: "user-1", Username: "alice"}

// --- Tests ---

func TestAppList(t *testing.T) {
	var gotParams repository.AppSearchParams
	chain := json.RawMessage(`{"nodes":[]}`)

	repo := &mockAppRepo{
		countFn: func(_ context.Context, requesterID string, _ repository.AppSearchParams) (int, error) {
			if requesterID != "user-1" {
				t.Errorf("requesterID: хотели user-1, получили %q", requesterID)
			}
			return 3, nil
		},
		searchFn: func(_ context.Context, _ string, params repository.AppSearchParams) ([]*model.Application, error) {
			gotParams = params
			return []*model.Application{
				{ID: "app-1", AppName: "Первое", CreatedBy: "user-1", Chain: chain},
				{ID: "app-2", AppName: "Второе", CreatedBy: "user-2", Published: true, Chain: chain},
			}, nil
		},
	}

	router := newAppsRouter(repo, nil, testIdentity)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/app/list?page=2&size=2&app_name=demo&tags=a,b", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	if gotParams.Limit != 2 || gotParams.Offset != 2 {
		t.Errorf("пагинация: хотели limit=2 offset=2, получили limit=%d offset=%d", gotParams.Limit, gotParams.Offset)
	}
	if gotParams.AppName == nil || *gotParams.AppName != "demo" {
		t.Errorf("фильтр app_name не передан в репозиторий: %v", gotParams.AppName)
	}
	if len(gotParams.Tags) != 2 || gotParams.Tags[0] != "a" || gotParams.Tags[1] != "b" {
		t.Errorf("фильтр tags: хотели [a b], получили %v", gotParams.Tags)
	}

	var resp struct {
		Applications []map[string]any `json:"applications"`
		TotalPages   int              `json:"total_pages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.TotalPages != 2 {
		t.Errorf("total_pages: хотели 2, получили %d", resp.TotalPages)
	}
	if len(resp.Applications) != 2 {
		t.Fatalf("applications: хотели 2 записи, получили %d", len(resp.Applications))
	}
	// Списочная проекция не содержит chain
	if _, ok := resp.Applications[0]["chain"]; ok {
		t.Error("списочная проекция не должна содержать chain")
	}
}

func TestAppLoad(t *testing.T) {
	chain := json.RawMessage(`{"nodes":[{"type":"llm"}]}`)
	repo := &mockAppRepo{
		getVisibleFn: func(_ context.Context, id, _ string) (*model.Application, error) {
			if id != "app-1" {
				return nil, repository.ErrNotFound
			}
			return &model.Application{
				ID:        "app-1",
				AppName:   "Демо",
				CreatedBy: "user-1",
				Chain:     chain,
				Status:    model.StatusActive,
			}, nil
		},
	}

	router := newAppsRouter(repo, nil, testIdentity)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/app/load/app-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp["app_name"] != "Демо" {
		t.Errorf("app_name: хотели Демо, получили %v", resp["app_name"])
	}
	if _, ok := resp["chain"]; !ok {
		t.Error("полная проекция должна содержать chain")
	}
}

func TestAppLoad_NotFoundContract(t *testing.T) {
	repo := &mockAppRepo{
		getVisibleFn: func(_ context.Context, _, _ string) (*model.Application, error) {
			return nil, repository.ErrNotFound
		},
	}

	router := newAppsRouter(repo, nil, testIdentity)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/app/load/missing", nil))

	// Контракт приложений: не найдено — 400, а не 404
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "NOT_FOUND" {
		t.Errorf("код ошибки: хотели NOT_FOUND, получили %q", code)
	}
}

func TestAppModify_Create(t *testing.T) {
	repo := &mockAppRepo{
		createFn: func(_ context.Context, a *model.Application) error {
			if a.CreatedBy != "user-1" {
				t.Errorf("created_by: хотели user-1, получили %q", a.CreatedBy)
			}
			return nil
		},
	}

	router := newAppsRouter(repo, nil, testIdentity)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"app_name":"Новое приложение","chain":{"nodes":[]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/app/modify", body)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if id, _ := resp["id"].(string); id == "" {
		t.Error("id должен быть сгенерирован при создании")
	}
}

func TestAppModify_MissingName(t *testing.T) {
	router := newAppsRouter(&mockAppRepo{}, nil, testIdentity)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/app/modify", strings.NewReader(`{"description":"без имени"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "VALIDATION_ERROR" {
		t.Errorf("код ошибки: хотели VALIDATION_ERROR, получили %q", code)
	}
}

func TestAppAutoGenerate_UpstreamError(t *testing.T) {
	gen := &mockGenerator{
		generateFn: func(_ context.Context, _ string) ([]byte, error) {
			return nil, context.DeadlineExceeded
		},
	}

	router := newAppsRouter(&mockAppRepo{}, gen, testIdentity)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/app/auto_generate", strings.NewReader(`{"instruction":"бот поддержки"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("статус: хотели 502, получили %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "UPSTREAM_ERROR" {
		t.Errorf("код ошибки: хотели UPSTREAM_ERROR, получили %q", code)
	}
}

func TestAppDelete(t *testing.T) {
	deleted := false
	repo := &mockAppRepo{
		softDeleteFn: func(_ context.Context, id, ownerID string) error {
			if id != "app-1" || ownerID != "user-1" {
				t.Errorf("некорректные аргументы удаления: id=%q owner=%q", id, ownerID)
			}
			deleted = true
			return nil
		},
	}

	router := newAppsRouter(repo, nil, testIdentity)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/app/delete/app-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}
	if !deleted {
		t.Error("SoftDelete не был вызван")
	}
}

func TestAppRoutes_Unauthenticated(t *testing.T) {
	// Без identity в контексте все маршруты отвечают 401
	router := newAppsRouter(&mockAppRepo{}, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/app/list", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("статус: хотели 401, получили %d", rec.Code)
	}
}

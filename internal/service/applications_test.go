package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
)

// --- Mock ApplicationRepository ---

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

// --- Mock Generator ---

type mockGenerator struct {
	generateFn func(ctx context.Context, instruction string) ([]byte, error)
}

func (m *mockGenerator) Generate(ctx context.Context, instruction string) ([]byte, error) {
	return m.generateFn(ctx, instruction)
}

func svcLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAppService(repo *mockAppRepo, gen Generator) *ApplicationService {
	return NewApplicationService(repo, NewCacheService(100, 5*time.Minute), gen, svcLogger())
}

func ptr(s string) *string { return &s }

// --- Тесты Modify ---

// TestApplicationService_Modify_Create: пустой id — создание с генерацией id.
func TestApplicationService_Modify_Create(t *testing.T) {
	var created *model.Application
	repo := &mockAppRepo{
		createFn: func(_ context.Context, a *model.Application) error {
			created = a
			return nil
		},
	}
	svc := newTestAppService(repo, nil)

	app, err := svc.Modify(context.Background(), "user-1", ModifyInput{AppName: ptr("Demo")})
	if err != nil {
		t.Fatalf("Modify() ошибка: %v", err)
	}
	if app.ID == "" {
		t.Error("ID не сгенерирован")
	}
	if app.AppName != "Demo" {
		t.Errorf("AppName = %q, хотели Demo", app.AppName)
	}
	if app.Published {
		t.Error("Published = true для нового приложения без флага")
	}
	if app.CreatedBy != "user-1" {
		t.Errorf("CreatedBy = %q, хотели user-1", app.CreatedBy)
	}
	if created == nil {
		t.Fatal("Create не был вызван")
	}
}

// TestApplicationService_Modify_Create_MissingName: имя обязательно при создании.
func TestApplicationService_Modify_Create_MissingName(t *testing.T) {
	svc := newTestAppService(&mockAppRepo{}, nil)

	_, err := svc.Modify(context.Background(), "user-1", ModifyInput{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Modify() = %v, ожидался ErrValidation", err)
	}
}

// TestApplicationService_Modify_Update_Partial: присутствующие поля применяются,
// отсутствующие сохраняются, published перезаписывается всегда.
func TestApplicationService_Modify_Update_Partial(t *testing.T) {
	existing := &model.Application{
		ID:        "app-1",
		AppName:   "Demo",
		CreatedBy: "user-1",
		Published: true,
	}
	repo := &mockAppRepo{
		getOwnedFn: func(_ context.Context, id, ownerID string) (*model.Application, error) {
			if id != "app-1" || ownerID != "user-1" {
				t.Errorf("GetOwned(%q, %q), ожидался (app-1, user-1)", id, ownerID)
			}
			return existing, nil
		},
		updateFn: func(_ context.Context, _ *model.Application) error { return nil },
	}
	svc := newTestAppService(repo, nil)

	app, err := svc.Modify(context.Background(), "user-1", ModifyInput{
		ID:          "app-1",
		Description: ptr("x"),
	})
	if err != nil {
		t.Fatalf("Modify() ошибка: %v", err)
	}
	if app.AppName != "Demo" {
		t.Errorf("AppName = %q, имя должно сохраниться", app.AppName)
	}
	if app.Description == nil || *app.Description != "x" {
		t.Errorf("Description = %v, хотели x", app.Description)
	}
	// published отсутствовал в запросе — перезаписан значением по умолчанию
	if app.Published {
		t.Error("Published должен быть перезаписан в false")
	}
}

// TestApplicationService_Modify_Update_NotFound: чужая или отсутствующая запись.
func TestApplicationService_Modify_Update_NotFound(t *testing.T) {
	repo := &mockAppRepo{
		getOwnedFn: func(_ context.Context, _, _ string) (*model.Application, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := newTestAppService(repo, nil)

	_, err := svc.Modify(context.Background(), "user-1", ModifyInput{ID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Modify() = %v, ожидался ErrNotFound", err)
	}
}

// --- Тесты Get ---

// TestApplicationService_Get_CacheVisibility: запись из кэша проходит
// проверку видимости для каждого запрашивающего.
func TestApplicationService_Get_CacheVisibility(t *testing.T) {
	dbCalls := 0
	repo := &mockAppRepo{
		getVisibleFn: func(_ context.Context, _, requesterID string) (*model.Application, error) {
			dbCalls++
			app := &model.Application{ID: "app-1", AppName: "Demo", CreatedBy: "owner"}
			if !app.VisibleTo(requesterID) {
				return nil, repository.ErrNotFound
			}
			return app, nil
		},
	}
	svc := newTestAppService(repo, nil)

	// Владелец: miss → БД → кэш
	if _, err := svc.Get(context.Background(), "owner", "app-1"); err != nil {
		t.Fatalf("Get() владельцем ошибка: %v", err)
	}
	if dbCalls != 1 {
		t.Errorf("dbCalls = %d, хотели 1", dbCalls)
	}

	// Повторный запрос владельцем — из кэша
	if _, err := svc.Get(context.Background(), "owner", "app-1"); err != nil {
		t.Fatalf("Get() повторно ошибка: %v", err)
	}
	if dbCalls != 1 {
		t.Errorf("dbCalls = %d после кэш-hit, хотели 1", dbCalls)
	}

	// Чужой пользователь: запись в кэше, но невидима
	if _, err := svc.Get(context.Background(), "stranger", "app-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() чужим = %v, ожидался ErrNotFound", err)
	}
}

// --- Тесты List ---

// TestApplicationService_List_TotalPages: total_pages = ceil(total/size).
func TestApplicationService_List_TotalPages(t *testing.T) {
	repo := &mockAppRepo{
		countFn: func(_ context.Context, _ string, _ repository.AppSearchParams) (int, error) {
			return 5, nil
		},
		searchFn: func(_ context.Context, _ string, _ repository.AppSearchParams) ([]*model.Application, error) {
			return []*model.Application{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	svc := newTestAppService(repo, nil)

	result, err := svc.List(context.Background(), "user-1", repository.AppSearchParams{Limit: 2}, 2)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, хотели 3 (ceil(5/2))", result.TotalPages)
	}
	if len(result.Items) != 2 {
		t.Errorf("Items = %d, хотели 2", len(result.Items))
	}
}

// --- Тесты AutoGenerate ---

// TestApplicationService_AutoGenerate: документ генерации сохраняется как новое приложение.
func TestApplicationService_AutoGenerate(t *testing.T) {
	repo := &mockAppRepo{
		createFn: func(_ context.Context, _ *model.Application) error { return nil },
	}
	gen := &mockGenerator{
		generateFn: func(_ context.Context, instruction string) ([]byte, error) {
			if instruction != "сделай чат-бота" {
				t.Errorf("instruction = %q", instruction)
			}
			return []byte(`{"app_name":"Бот","description":"чат-бот","chain":{"nodes":[]}}`), nil
		},
	}
	svc := newTestAppService(repo, gen)

	app, err := svc.AutoGenerate(context.Background(), "user-1", "сделай чат-бота")
	if err != nil {
		t.Fatalf("AutoGenerate() ошибка: %v", err)
	}
	if app.AppName != "Бот" {
		t.Errorf("AppName = %q, хотели Бот", app.AppName)
	}
	if app.ID == "" {
		t.Error("ID не сгенерирован")
	}
	if string(app.Chain) != `{"nodes":[]}` {
		t.Errorf("Chain = %s", app.Chain)
	}
}

// TestApplicationService_AutoGenerate_UpstreamError: ошибка upstream фатальна.
func TestApplicationService_AutoGenerate_UpstreamError(t *testing.T) {
	gen := &mockGenerator{
		generateFn: func(_ context.Context, _ string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestAppService(&mockAppRepo{}, gen)

	_, err := svc.AutoGenerate(context.Background(), "user-1", "x")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("AutoGenerate() = %v, ожидался ErrGeneration", err)
	}
}

// TestApplicationService_AutoGenerate_MissingName: документ без app_name отклоняется.
func TestApplicationService_AutoGenerate_MissingName(t *testing.T) {
	gen := &mockGenerator{
		generateFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte(`{"description":"без имени"}`), nil
		},
	}
	svc := newTestAppService(&mockAppRepo{}, gen)

	_, err := svc.AutoGenerate(context.Background(), "user-1", "x")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("AutoGenerate() = %v, ожидался ErrValidation", err)
	}
}

// --- Тесты Delete / Publish ---

// TestApplicationService_Delete_InvalidatesCache: после удаления запись
// не должна отдаваться из кэша.
func TestApplicationService_Delete_InvalidatesCache(t *testing.T) {
	deleted := false
	repo := &mockAppRepo{
		getVisibleFn: func(_ context.Context, _, _ string) (*model.Application, error) {
			if deleted {
				return nil, repository.ErrNotFound
			}
			return &model.Application{ID: "app-1", CreatedBy: "user-1"}, nil
		},
		softDeleteFn: func(_ context.Context, _, _ string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestAppService(repo, nil)

	// Прогреваем кэш
	if _, err := svc.Get(context.Background(), "user-1", "app-1"); err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}

	if err := svc.Delete(context.Background(), "user-1", "app-1"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	if _, err := svc.Get(context.Background(), "user-1", "app-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() после удаления = %v, ожидался ErrNotFound", err)
	}
}

// TestApplicationService_Publish_NotOwned.
func TestApplicationService_Publish_NotOwned(t *testing.T) {
	repo := &mockAppRepo{
		publishFn: func(_ context.Context, _, _ string) error {
			return repository.ErrNotFound
		},
	}
	svc := newTestAppService(repo, nil)

	if err := svc.Publish(context.Background(), "stranger", "app-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Publish() = %v, ожидался ErrNotFound", err)
	}
}

package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// --- Тесты buildFileWhere ---

// TestBuildFileWhere_Empty проверяет базовые предикаты видимости.
func TestBuildFileWhere_Empty(t *testing.T) {
	where, args := buildFileWhere(FileSearchParams{}, 2)

	if !strings.Contains(where, "f.status = 'active'") {
		t.Errorf("where = %q, ожидался предикат status = 'active'", where)
	}
	if !strings.Contains(where, "(f.uploaded_by = $1 OR f.published)") {
		t.Errorf("where = %q, ожидался предикат видимости", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildFileWhere_UploadedBy проверяет точный фильтр по владельцу.
func TestBuildFileWhere_UploadedBy(t *testing.T) {
	owner := "user-1"
	where, args := buildFileWhere(FileSearchParams{UploadedBy: &owner}, 2)

	if !strings.Contains(where, "f.uploaded_by = $2") {
		t.Errorf("where = %q, ожидался uploaded_by = $2", where)
	}
	if len(args) != 1 || args[0] != "user-1" {
		t.Errorf("args = %v, ожидался ['user-1']", args)
	}
}

// --- Интеграционные тесты ---

func TestFileCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	ensureUser(t, pool, "uploader-1", "alice")
	ensureUser(t, pool, "viewer-1", "bob")

	fileID := uuid.New().String()
	file := &model.File{
		ID:         fileID,
		Name:       "notes.txt",
		Type:       model.FileTypePlainText,
		UploadedBy: "uploader-1",
		Size:       11,
		Content:    []byte(`"hello file"`),
		RawContent: []byte("hello file\n"),
	}

	// Register
	if err := repo.Register(ctx, file); err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}
	if file.UploadedAt.IsZero() {
		t.Error("UploadedAt не установлен")
	}

	// GetVisible владельцем — с содержимым
	got, err := repo.GetVisible(ctx, fileID, "uploader-1")
	if err != nil {
		t.Fatalf("GetVisible() ошибка: %v", err)
	}
	if got.Name != "notes.txt" {
		t.Errorf("Name = %q, хотели %q", got.Name, "notes.txt")
	}
	if got.Type != model.FileTypePlainText {
		t.Errorf("Type = %q, хотели %q", got.Type, model.FileTypePlainText)
	}
	if got.UploadedByUsername != "alice" {
		t.Errorf("UploadedByUsername = %q, хотели %q", got.UploadedByUsername, "alice")
	}
	if string(got.Content) != `"hello file"` {
		t.Errorf("Content = %s, хотели %q", got.Content, `"hello file"`)
	}

	// Неопубликованный файл невидим чужому
	if _, err := repo.GetVisible(ctx, fileID, "viewer-1"); err != ErrNotFound {
		t.Errorf("GetVisible() чужим = %v, ожидался ErrNotFound", err)
	}

	// GetMeta возвращает запись без проверки видимости
	meta, err := repo.GetMeta(ctx, fileID)
	if err != nil {
		t.Fatalf("GetMeta() ошибка: %v", err)
	}
	if meta.UploadedBy != "uploader-1" {
		t.Errorf("UploadedBy = %q, хотели %q", meta.UploadedBy, "uploader-1")
	}

	// GetRaw отдаёт исходные байты
	raw, err := repo.GetRaw(ctx, fileID)
	if err != nil {
		t.Fatalf("GetRaw() ошибка: %v", err)
	}
	if string(raw.RawContent) != "hello file\n" {
		t.Errorf("RawContent = %q, хотели %q", raw.RawContent, "hello file\n")
	}

	// Publish → видим всем
	if err := repo.Publish(ctx, fileID, "uploader-1"); err != nil {
		t.Fatalf("Publish() ошибка: %v", err)
	}
	if _, err := repo.GetVisible(ctx, fileID, "viewer-1"); err != nil {
		t.Errorf("GetVisible() после publish ошибка: %v", err)
	}

	// Publish чужим — ErrNotFound
	if err := repo.Publish(ctx, fileID, "viewer-1"); err != ErrNotFound {
		t.Errorf("Publish() чужим = %v, ожидался ErrNotFound", err)
	}

	// SoftDelete скрывает запись из поиска и загрузки
	if err := repo.SoftDelete(ctx, fileID); err != nil {
		t.Fatalf("SoftDelete() ошибка: %v", err)
	}
	if _, err := repo.GetVisible(ctx, fileID, "uploader-1"); err != ErrNotFound {
		t.Errorf("GetVisible() после удаления = %v, ожидался ErrNotFound", err)
	}
	if _, err := repo.GetMeta(ctx, fileID); err != ErrNotFound {
		t.Errorf("GetMeta() после удаления = %v, ожидался ErrNotFound", err)
	}
}

func TestFileSearch(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	ensureUser(t, pool, "u1", "u1")
	ensureUser(t, pool, "u2", "u2")

	f1 := &model.File{ID: uuid.New().String(), Name: "a.txt", Type: model.FileTypePlainText, UploadedBy: "u1", RawContent: []byte("a")}
	f2 := &model.File{ID: uuid.New().String(), Name: "b.csv", Type: model.FileTypeTable, UploadedBy: "u2", RawContent: []byte("b")}
	for _, f := range []*model.File{f1, f2} {
		if err := repo.Register(ctx, f); err != nil {
			t.Fatalf("Register(%s) ошибка: %v", f.Name, err)
		}
	}
	if err := repo.Publish(ctx, f2.ID, "u2"); err != nil {
		t.Fatalf("Publish() ошибка: %v", err)
	}

	// u1 видит своё и чужое опубликованное
	list, err := repo.Search(ctx, "u1", FileSearchParams{Limit: 10})
	if err != nil {
		t.Fatalf("Search() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Search() вернул %d записей, хотели 2", len(list))
	}
	// Метаданные списка не включают содержимое
	for _, f := range list {
		if f.Content != nil || f.RawContent != nil {
			t.Errorf("Search() вернул содержимое для %q, ожидались только метаданные", f.Name)
		}
	}

	// Фильтр по владельцу
	owner := "u2"
	count, err := repo.Count(ctx, "u1", FileSearchParams{UploadedBy: &owner})
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("Count(uploaded_by=u2) = %d, хотели 1", count)
	}
}

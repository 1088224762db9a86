// handler.go — общие вспомогательные функции обработчиков API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Параметры пагинации по умолчанию.
const (
	defaultPage = 1
	defaultSize = 20
	maxSize     = 100
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pagination извлекает и нормализует параметры page/size из query string.
// Нумерация страниц начинается с 1.
func pagination(r *http.Request) (page, size int) {
	page = defaultPage
	size = defaultSize

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			page = n
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			size = n
			if size > maxSize {
				size = maxSize
			}
		}
	}

	return page, size
}

// optionalQuery возвращает указатель на значение query-параметра
// или nil, если параметр отсутствует.
func optionalQuery(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := r.URL.Query().Get(name)
	return &v
}

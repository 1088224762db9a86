// Пакет vectorstore — HTTP-клиент сервиса векторного хранилища.
// Используется при удалении файлов типа Embedded Text: эмбеддинги
// должны быть удалены до пометки записи файла удалённой.
package vectorstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client — HTTP-клиент векторного хранилища.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент векторного хранилища.
// baseURL — базовый URL сервиса (из конфигурации BM_VECTORSTORE_URL).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "vectorstore_client")),
	}
}

// DeleteEmbeddings удаляет эмбеддинги файла из векторного хранилища.
// DELETE /v1/resource/delete_chroma/{fileID}
func (c *Client) DeleteEmbeddings(ctx context.Context, fileID string) error {
	reqURL := fmt.Sprintf("%s/v1/resource/delete_chroma/%s", c.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса удаления эмбеддингов: %w", err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос удаления эмбеддингов к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	// Успех — любой 2xx: хранилище отвечает 204 при отсутствии тела
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("векторное хранилище вернуло статус %d для файла %s: %s",
			resp.StatusCode, fileID, string(body))
	}

	c.logger.Debug("Эмбеддинги удалены", slog.String("file_id", fileID))
	return nil
}

// CheckReady проверяет доступность векторного хранилища (для readiness probe).
func (c *Client) CheckReady(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса healthz: %w", err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("векторное хранилище недоступно: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("векторное хранилище вернуло статус %d", resp.StatusCode)
	}
	return nil
}

// Пакет genclient — HTTP-клиент сервиса генерации определений приложений.
// Отправляет текстовую инструкцию и собирает потоковый ответ
// (построчный JSON в формате chat-completion delta) в один документ.
package genclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// streamChunk — одна строка потокового ответа сервиса генерации.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Client — HTTP-клиент сервиса генерации.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент сервиса генерации.
// baseURL — полный URL endpoint'а генерации (из конфигурации BM_GENERATE_URL).
// timeout — таймаут всего запроса, включая чтение потока (BM_GENERATE_TIMEOUT).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "gen_client")),
	}
}

// Generate отправляет инструкцию и возвращает собранный из потока документ.
// Поток — строки JSON; из каждой извлекается choices[0].delta.content,
// фрагменты конкатенируются в итоговый документ.
func (c *Client) Generate(ctx context.Context, instruction string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"agent_inst": instruction})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса генерации: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса генерации: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос генерации к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("сервис генерации вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var builder strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("разбор фрагмента потока: %w", err)
		}
		if len(chunk.Choices) > 0 {
			builder.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("чтение потока генерации: %w", err)
	}

	c.logger.Debug("Генерация завершена",
		slog.Int("document_bytes", builder.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	return []byte(builder.String()), nil
}

// tabular.go — определение типа загружаемого файла и разбор табличного содержимого.
// Табличные файлы (CSV/TSV) разбираются в записи вида []map[string]any
// с заголовком в первой строке; числовые значения приводятся к int64/float64.
package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// ParsedContent — результат разбора содержимого файла.
type ParsedContent struct {
	// Type — определённый тип файла (Table или Plain Text)
	Type model.FileType
	// Content — структурированное содержимое: записи таблицы или обёрнутый текст
	Content json.RawMessage
	// RowCount — количество строк данных (0 для Plain Text)
	RowCount int
}

// DetectAndParse определяет тип файла по первой строке и разбирает содержимое.
// Наличие табуляции или запятой в первой строке означает таблицу
// (табуляция имеет приоритет при выборе разделителя), иначе — обычный текст.
func DetectAndParse(raw []byte) (*ParsedContent, error) {
	firstLine := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}

	var delimiter rune
	switch {
	case bytes.ContainsRune(firstLine, '\t'):
		delimiter = '\t'
	case bytes.ContainsRune(firstLine, ','):
		delimiter = ','
	default:
		// Обычный текст: содержимое оборачивается в одно поле.
		content, err := json.Marshal(map[string]string{"text": string(raw)})
		if err != nil {
			return nil, fmt.Errorf("сериализация текстового содержимого: %w", err)
		}
		return &ParsedContent{Type: model.FileTypePlainText, Content: content}, nil
	}

	records, err := parseTable(raw, delimiter)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("сериализация табличного содержимого: %w", err)
	}

	return &ParsedContent{
		Type:     model.FileTypeTable,
		Content:  content,
		RowCount: len(records),
	}, nil
}

// parseTable разбирает CSV/TSV: первая строка — заголовок,
// остальные — записи map[заголовок]значение.
func parseTable(raw []byte, delimiter rune) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("разбор таблицы: %w", err)
	}
	if len(rows) == 0 {
		return []map[string]any{}, nil
	}

	header := rows[0]
	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = coerceValue(row[i])
			} else {
				record[col] = nil
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// coerceValue приводит строковое значение ячейки к числу, если возможно.
func coerceValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

// Columnarize преобразует записи таблицы в колоночное JSON-представление:
// {"col": {"0": v0, "1": v1, ...}, ...}. Возвращает сериализованную строку —
// клиент получает содержимое таблицы как JSON-строку внутри ответа.
func Columnarize(content json.RawMessage) (string, error) {
	var records []map[string]any
	if err := json.Unmarshal(content, &records); err != nil {
		return "", fmt.Errorf("десериализация записей таблицы: %w", err)
	}

	columns := make(map[string]map[string]any)
	for i, record := range records {
		idx := strconv.Itoa(i)
		for col, val := range record {
			if columns[col] == nil {
				columns[col] = make(map[string]any)
			}
			columns[col][idx] = val
		}
	}

	out, err := json.Marshal(columns)
	if err != nil {
		return "", fmt.Errorf("сериализация колоночного представления: %w", err)
	}
	return string(out), nil
}

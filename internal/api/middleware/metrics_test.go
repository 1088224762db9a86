package middleware

import "testing"

// TestNormalizePath проверяет нормализацию путей для лейблов метрик.
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "статический путь list",
			input:    "/v1/app/list",
			expected: "/v1/app/list",
		},
		{
			name:     "статический путь metrics",
			input:    "/metrics",
			expected: "/metrics",
		},
		{
			name:     "load приложения с UUID",
			input:    "/v1/app/load/a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			expected: "/v1/app/load/{id}",
		},
		{
			name:     "delete приложения",
			input:    "/v1/app/delete/a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			expected: "/v1/app/delete/{id}",
		},
		{
			name:     "download файла",
			input:    "/v1/file/download/a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			expected: "/v1/file/download/{id}",
		},
		{
			name:     "publish файла",
			input:    "/v1/file/publish/a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			expected: "/v1/file/publish/{id}",
		},
		{
			name:     "неизвестный путь не нормализуется",
			input:    "/v1/unknown/load/abc",
			expected: "/v1/unknown/load/abc",
		},
		{
			name:     "неизвестная операция не нормализуется",
			input:    "/v1/app/clone/abc",
			expected: "/v1/app/clone/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizePath(tt.input)
			if result != tt.expected {
				t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.input, result, tt.expected)
			}
		})
	}
}

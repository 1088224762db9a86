package model

import (
	"encoding/json"
	"time"
)

// FileType — тип загруженного файла.
// Определяется один раз при загрузке и далее неизменяем,
// за исключением перехода в EmbeddedText, который выполняет
// внешний сервис эмбеддингов.
type FileType string

const (
	// FileTypeTable — табличный файл (CSV/TSV), content — массив записей строк.
	FileTypeTable FileType = "Table"
	// FileTypePlainText — простой текст, content — {"text": ...}.
	FileTypePlainText FileType = "Plain Text"
	// FileTypeEmbeddedText — текст, проиндексированный во внешнем векторном хранилище.
	FileTypeEmbeddedText FileType = "Embedded Text"
)

// File — загруженный файл данных.
// Хранится в таблице files.
type File struct {
	// ID — UUID файла (генерируется при загрузке)
	ID string
	// Name — отображаемое имя файла (из оригинального имени загрузки)
	Name string
	// Type — тип файла (Table, Plain Text, Embedded Text)
	Type FileType
	// UploadedBy — идентификатор загрузившего (sub из JWT)
	UploadedBy string
	// UploadedByUsername — имя загрузившего (проекция из users)
	UploadedByUsername string
	// UploadedAt — время загрузки
	UploadedAt time.Time
	// Size — размер файла в байтах
	Size int64
	// Content — структурированное содержимое: записи строк для Table,
	// {"text": ...} для Plain Text / Embedded Text
	Content json.RawMessage
	// RawContent — оригинальные байты файла (для повторного скачивания)
	RawContent []byte
	// Published — опубликован ли файл
	Published bool
	// Status — состояние жизненного цикла (active, deleted)
	Status RecordStatus
	// DeletedAt — время удаления (только для status = deleted)
	DeletedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// VisibleTo сообщает, видим ли файл пользователю:
// загрузившему — всегда, остальным — только опубликованный.
func (f *File) VisibleTo(userID string) bool {
	if f.Status != StatusActive {
		return false
	}
	return f.UploadedBy == userID || f.Published
}

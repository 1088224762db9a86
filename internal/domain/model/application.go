// Пакет model — доменные модели Builder Module.
package model

import (
	"encoding/json"
	"time"
)

// RecordStatus — состояние жизненного цикла записи.
// Soft delete моделируется явным состоянием, а не sentinel-значением:
// deleted_at — атрибут состояния deleted.
type RecordStatus string

const (
	// StatusActive — запись активна и участвует в выборках.
	StatusActive RecordStatus = "active"
	// StatusDeleted — запись помечена удалённой и невидима для всех.
	StatusDeleted RecordStatus = "deleted"
)

// Application — приложение конструктора.
// Хранится в таблице applications.
type Application struct {
	// ID — UUID приложения (генерируется при создании)
	ID string
	// AppName — имя приложения
	AppName string
	// CreatedBy — идентификатор владельца (sub из JWT), неизменяем после создания
	CreatedBy string
	// CreatedByUsername — имя владельца (проекция из users, не хранится в applications)
	CreatedByUsername string
	// Tags — теги приложения (свободный текст)
	Tags *string
	// Description — описание приложения
	Description *string
	// Published — опубликовано ли приложение (видимо всем аутентифицированным)
	Published bool
	// Chain — определение цепочки приложения (произвольный JSON, opaque)
	Chain json.RawMessage
	// Status — состояние жизненного цикла (active, deleted)
	Status RecordStatus
	// DeletedAt — время удаления (только для status = deleted)
	DeletedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// VisibleTo сообщает, видима ли запись пользователю:
// владельцу — всегда, остальным — только опубликованная.
// Удалённые записи невидимы никому.
func (a *Application) VisibleTo(userID string) bool {
	if a.Status != StatusActive {
		return false
	}
	return a.CreatedBy == userID || a.Published
}

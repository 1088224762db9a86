package model

import "time"

// User — локальное отражение пользователя из внешнего Identity Provider.
// Полный жизненный цикл учётной записи управляется IdP; здесь хранится
// только то, что нужно для проекции имени в списках.
// Обновляется auth middleware при каждом аутентифицированном запросе.
type User struct {
	// ID — идентификатор пользователя в IdP (sub из JWT)
	ID string
	// Username — имя пользователя (preferred_username из JWT)
	Username string
	// CreatedAt — время первого появления пользователя в этом модуле
	CreatedAt time.Time
}

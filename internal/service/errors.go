// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден или невидим запрашивающему.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — операция доступна только владельцу ресурса.
	ErrForbidden = errors.New("операция доступна только владельцу")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrGeneration — сервис генерации цепочек недоступен или вернул ошибку.
	ErrGeneration = errors.New("сервис генерации недоступен")
	// ErrVectorstore — не удалось удалить эмбеддинги из векторного хранилища.
	ErrVectorstore = errors.New("векторное хранилище недоступно")
)

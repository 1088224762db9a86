// Пакет service — бизнес-логика Builder Module.
// CacheService — LRU-кэш записей приложений с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш приложений.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша приложений.",
	})
)

// CacheService — LRU-кэш записей приложений с автоматическим TTL.
// Каждый экземпляр модуля имеет собственный in-memory кэш (per-instance, stateless архитектура).
// Кэш хранит записи по id приложения; проверка видимости выполняется
// сервисом после чтения из кэша.
type CacheService struct {
	cache *expirable.LRU[string, *model.Application]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.Application](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает Application из кэша по appID.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(appID string) (*model.Application, bool) {
	val, ok := c.cache.Get(appID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(appID string, app *model.Application) {
	c.cache.Add(appID, app)
}

// Invalidate удаляет запись из кэша (после modify/delete/publish).
func (c *CacheService) Invalidate(appID string) {
	c.cache.Remove(appID)
}

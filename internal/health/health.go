// Package health — реестр проверок готовности зависимостей сервиса.
package health

import (
	"context"
	"sync"
	"time"
)

// Status представляет статус компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc проверяет доступность одной зависимости.
type CheckFunc func(ctx context.Context) error

// Result — исход одной проверки.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Registry хранит именованные проверки готовности.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewRegistry создаёт пустой реестр проверок.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]CheckFunc)}
}

// Register добавляет проверку под именем name.
func (r *Registry) Register(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// RunAll выполняет все проверки и возвращает их исходы.
func (r *Registry) RunAll(ctx context.Context) []Result {
	r.mu.RLock()
	checks := make(map[string]CheckFunc, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	results := make([]Result, 0, len(checks))
	for name, check := range checks {
		started := time.Now()
		err := check(ctx)
		results = append(results, Result{
			Name:     name,
			Err:      err,
			Duration: time.Since(started),
		})
	}
	return results
}

// componentView — сериализуемое представление исхода проверки.
type componentView struct {
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Render превращает исходы проверок в JSON-представление ответа readiness.
func Render(results []Result) map[string]interface{} {
	overall := StatusHealthy
	components := make(map[string]componentView, len(results))

	for _, result := range results {
		view := componentView{
			Status:     StatusHealthy,
			DurationMs: result.Duration.Milliseconds(),
		}
		if result.Err != nil {
			overall = StatusUnhealthy
			view.Status = StatusUnhealthy
			view.Message = result.Err.Error()
		}
		components[result.Name] = view
	}

	return map[string]interface{}{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"checks":    components,
	}
}

// Package http — HTTP-транспорт сервиса checkout на gin. Тонкий слой:
// парсит запрос, извлекает Principal из заголовков и транслирует
// доменные ошибки в HTTP-статусы. Вся логика живёт в оркестраторе.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/saveitforlater/checkout/internal/domain"
	"github.com/saveitforlater/checkout/internal/health"
	"github.com/saveitforlater/checkout/internal/service/checkout"
)

// Заголовки идентичности. Аутентификация — забота внешнего шлюза;
// сервис доверяет заголовкам, проставленным им.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

const principalKey = "principal"

// Server держит роутер и зависимости HTTP-слоя.
type Server struct {
	svc    *checkout.Service
	checks *health.Registry
	logger *log.Entry
	engine *gin.Engine
}

// NewServer собирает gin-роутер с маршрутами заказов и health-пробами.
func NewServer(svc *checkout.Service, checks *health.Registry, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{svc: svc, checks: checks, logger: logger, engine: engine}
	s.routes()
	return s
}

// Handler возвращает http.Handler для запуска сервера.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleLiveness)
	s.engine.GET("/readyz", s.handleReadiness)

	api := s.engine.Group("/api/v1")
	api.Use(s.requirePrincipal())
	{
		api.POST("/orders", s.handleCreateOrder)
		api.GET("/orders", s.handleListAllOrders)
		api.GET("/orders/my", s.handleListMyOrders)
		api.GET("/orders/:id", s.handleGetOrder)
		api.POST("/orders/:id/pay", s.handlePayOrder)
		api.PATCH("/orders/:id/status", s.handleSetOrderStatus)
		api.PATCH("/orders/:id/payment-status", s.handleSetPaymentStatus)
	}
}

// requirePrincipal извлекает идентичность вызывающего из заголовков.
func (s *Server) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + headerUserID + " header"})
			return
		}

		role := domain.RoleCustomer
		if c.GetHeader(headerUserRole) == string(domain.RoleAdmin) {
			role = domain.RoleAdmin
		}

		c.Set(principalKey, domain.Principal{ID: userID, Role: role})
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(domain.Principal)
	return principal
}

func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadiness(c *gin.Context) {
	if s.checks == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	results := s.checks.RunAll(c.Request.Context())
	status := http.StatusOK
	for _, result := range results {
		if result.Err != nil {
			status = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(status, health.Render(results))
}

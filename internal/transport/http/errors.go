package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saveitforlater/checkout/internal/domain"
)

// writeError транслирует доменные ошибки в HTTP-статусы.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err) || errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case domain.IsContention(err):
		// Транзиентный конфликт блокировок: клиенту безопасно повторить.
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	case isConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		s.logger.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func isConflict(err error) bool {
	if domain.IsVersionConflict(err) ||
		errors.Is(err, domain.ErrOrderAlreadyExists) ||
		errors.Is(err, domain.ErrPaymentNotPending) ||
		errors.Is(err, domain.ErrPaymentMethodNotCard) {
		return true
	}
	if _, ok := domain.IsInsufficientStock(err); ok {
		return true
	}
	var ite *domain.IllegalTransitionError
	return errors.As(err, &ite)
}

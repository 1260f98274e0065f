package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

// writeBindError answers a request whose body or query failed binding.
func writeBindError(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "invalid_request", bindErrorMessage(err))
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request format"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// writeError maps service and storage errors onto HTTP responses. Anything
// unrecognised is logged and reported as a generic 500.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var (
		notFound     *service.ProductNotFoundError
		insufficient *service.InsufficientInventoryError
	)

	switch {
	case errors.As(err, &notFound):
		abortWithError(c, http.StatusBadRequest, "product_not_found", notFound.Error())
	case errors.As(err, &insufficient):
		abortWithError(c, http.StatusBadRequest, "insufficient_inventory", insufficient.Error())
	case errors.Is(err, service.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case domain.IsNotFound(err):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		abortWithError(c, http.StatusConflict, "duplicate_request", "duplicate request")
	case errors.Is(err, domain.ErrConflict):
		abortWithError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		abortWithError(c, http.StatusTooManyRequests, "too_many_attempts", "too many failed login attempts, try again later")
	case errors.Is(err, service.ErrInvalidCredentials):
		abortWithError(c, http.StatusUnauthorized, "authentication_failed", "invalid email or password")
	default:
		h.logger.Error("request error",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

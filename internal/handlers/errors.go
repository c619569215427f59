package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/meduzzen/messenger/internal/apperr"
	"github.com/meduzzen/messenger/pkg/i18n"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondDetail writes {"detail": message}, translated for the request.
func respondDetail(c *gin.Context, status int, message string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": i18n.Localize(message, c.GetHeader("Accept-Language"))})
}

// respondError maps service errors onto HTTP responses. Anything that is not
// an apperr.Error is logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		c.Error(err)
		log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		respondDetail(c, http.StatusInternalServerError, "internal server error")
		return
	}
	respondDetail(c, statusFor(kind), apperr.Detail(err))
}

// respondBindError answers 422 naming the first field that failed binding.
func respondBindError(c *gin.Context, err error) {
	respondDetail(c, http.StatusUnprocessableEntity, bindErrorDetail(err))
}

func bindErrorDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return fmt.Sprintf("missing field %s", fe.Field())
		}
		return fmt.Sprintf("invalid field %s: %s", fe.Field(), fe.Tag())
	}
	return fmt.Sprintf("failed to parse request: %v", err)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/practicedesk/booking-api/pkg/apperror"
)

// Response is the standard success envelope.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorResponse is the standard failure envelope: a stable machine
// readable kind plus a human readable message. No internal detail ever
// crosses this boundary.
type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// Error maps an application error onto the HTTP surface.
func Error(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Status:  "error",
			Kind:    string(apperror.KindInternal),
			Message: "internal error",
		})
		return
	}

	if appErr.Kind == apperror.KindInternal || appErr.Kind == apperror.KindUnavailable {
		log.Error().Err(appErr).Str("path", c.Request.URL.Path).Msg("Request failed")
	}

	c.JSON(statusFor(appErr.Kind), ErrorResponse{
		Status:  "error",
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
	})
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindUnauthorized, apperror.KindTokenExpired, apperror.KindTokenRevoked:
		return http.StatusUnauthorized
	case apperror.KindForbidden, apperror.KindTenantMismatch, apperror.KindTenantInactive:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation:
		return http.StatusUnprocessableEntity
	case apperror.KindInvalidTransition, apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package http

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"supermock/internal/core/domain"
	"supermock/internal/core/services"
	"supermock/pkg/errors"
)

var domainErrors = []errors.Mapping{
	{Target: domain.ErrSessionNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrNotificationNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrEntryNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrInvalidTransition, Code: errors.ErrCodeInvalidTransition, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrRoleConflict, Code: errors.ErrCodeRoleConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrRoleRestricted, Code: errors.ErrCodeRoleRestricted, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrFeedbackRequired, Code: errors.ErrCodeFeedbackRequired, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrDuplicateFeedback, Code: errors.ErrCodeDuplicateFeedback, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrNotParticipant, Code: errors.ErrCodeNotParticipant, HTTPStatus: http.StatusForbidden},
	{Target: domain.ErrNotInterviewer, Code: errors.ErrCodeForbidden, HTTPStatus: http.StatusForbidden},
	{Target: domain.ErrJoinDenied, Code: errors.ErrCodeJoinDenied, HTTPStatus: http.StatusForbidden},
	{Target: domain.ErrInvalidLink, Code: errors.ErrCodeInvalidLink, HTTPStatus: http.StatusUnprocessableEntity},
	{Target: domain.ErrInvalidRole, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrTxConflict, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: services.ErrInvalidToken, Code: errors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
	{Target: services.ErrExpiredToken, Code: errors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
}

// respondError attaches err, translated to an AppError, for the error middleware.
func respondError(c *gin.Context, err error) {
	appErr := errors.Translate(err, domainErrors...)
	if stderrors.Is(err, domain.ErrInvalidLink) {
		appErr = appErr.WithContext("reason", err.Error())
	}
	_ = c.Error(appErr)
}

func badRequest(c *gin.Context, message string) {
	_ = c.Error(errors.NewInvalidInputError(message))
}

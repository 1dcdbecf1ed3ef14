package responses

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"wahub/services/whatsapp-api/internal/domain/credential"
	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/utils/platformerrors"
)

// HandleError handles errors and writes appropriate HTTP responses.
// It maps domain sentinels and platform errors to HTTP status codes.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	if errors.Is(err, session.ErrRecordNotFound) || errors.Is(err, credential.ErrNotFound) {
		platformerrors.WriteNotFound(c, message)
		return
	}

	platformerrors.WriteError(c, err, logger)
}

// HandleNewError creates and writes a new typed error response.
// Use this for route-level errors like validation or authorization failures.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	status := platformerrors.ErrorTypeToHTTPStatus(errorType)
	c.JSON(status, platformerrors.HTTPErrorResponse{
		Error: &platformerrors.HTTPErrorDetail{
			Message: message,
			Type:    errorTypeString(errorType),
		},
	})
}

func errorTypeString(t platformerrors.ErrorType) string {
	switch t {
	case platformerrors.ErrorTypeNotFound:
		return "not_found_error"
	case platformerrors.ErrorTypeValidation:
		return "validation_error"
	case platformerrors.ErrorTypeConflict:
		return "conflict_error"
	case platformerrors.ErrorTypeUnauthorized:
		return "unauthorized_error"
	case platformerrors.ErrorTypeForbidden:
		return "forbidden_error"
	case platformerrors.ErrorTypeUnavailable:
		return "unavailable_error"
	case platformerrors.ErrorTypeExternal:
		return "external_error"
	default:
		return "internal_error"
	}
}

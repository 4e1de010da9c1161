package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	TextCode string `json:"text_code"`
	Message  string `json:"message"`
}

func httpError(message string, category goerrors.Category, code int) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(httpTextCode(category))
}

func httpWrapError(source error, category goerrors.Category, message string, code int) *goerrors.Error {
	if source == nil {
		return httpError(message, category, code)
	}
	return goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(httpTextCode(category))
}

func httpTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryRateLimit:
		return core.ErrorRateLimited
	case goerrors.CategoryNotFound:
		return core.ErrorProviderNotFound
	default:
		return core.ErrorInternal
	}
}

// toErrorResponse unwraps a go-errors envelope; anything else is reported as
// an internal error without leaking its text.
func toErrorResponse(err error) (int, ErrorResponse) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:    string(goerrors.CategoryInternal),
			TextCode: core.ErrorInternal,
			Message:  "An unexpected error occurred",
		}
	}
	status := rich.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	textCode := strings.TrimSpace(rich.TextCode)
	if textCode == "" {
		textCode = httpTextCode(rich.Category)
	}
	return status, ErrorResponse{
		Error:    string(rich.Category),
		TextCode: textCode,
		Message:  rich.Message,
	}
}

func abortWithError(c *gin.Context, err error) {
	status, body := toErrorResponse(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

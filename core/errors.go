package core

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration       = "INTEGRATION_CONFIGURATION"
	ErrorProvider            = "INTEGRATION_PROVIDER_ERROR"
	ErrorStateExpired        = "INTEGRATION_STATE_EXPIRED"
	ErrorStateMismatch       = "INTEGRATION_STATE_MISMATCH"
	ErrorTokenExchangeFailed = "INTEGRATION_TOKEN_EXCHANGE_FAILED"
	ErrorCredentialNotFound  = "INTEGRATION_CREDENTIAL_NOT_FOUND"
	ErrorUpstreamAPIFailed   = "INTEGRATION_UPSTREAM_API_FAILED"
	ErrorBadInput            = "INTEGRATION_BAD_INPUT"
	ErrorProviderNotFound    = "INTEGRATION_PROVIDER_NOT_FOUND"
	ErrorRateLimited         = "INTEGRATION_RATE_LIMITED"
	ErrorInternal            = "INTEGRATION_INTERNAL"
)

// maxErrorBodyBytes caps how much of an upstream response is echoed into
// error messages.
const maxErrorBodyBytes = 2048

func NewConfigurationError(providerID string, message string) *goerrors.Error {
	return newIntegrationError(message, goerrors.CategoryInternal, ErrorConfiguration, http.StatusInternalServerError).
		WithMetadata(map[string]any{"provider_id": providerID})
}

// NewProviderError reports an authorization the provider refused. The
// description wins over the bare error code when both are present.
func NewProviderError(providerID string, code string, description string) *goerrors.Error {
	message := strings.TrimSpace(description)
	if message == "" {
		message = strings.TrimSpace(code)
	}
	if message == "" {
		message = "provider returned an authorization error"
	}
	return newIntegrationError(message, goerrors.CategoryExternal, ErrorProvider, http.StatusBadRequest).
		WithMetadata(map[string]any{"provider_id": providerID, "error": code})
}

func NewStateExpiredError(key CompositeKey) *goerrors.Error {
	return newIntegrationError("authorization state expired or already used", goerrors.CategoryAuth, ErrorStateExpired, http.StatusBadRequest).
		WithMetadata(key.fields())
}

func NewStateMismatchError(key CompositeKey) *goerrors.Error {
	return newIntegrationError("authorization state does not match", goerrors.CategoryAuth, ErrorStateMismatch, http.StatusBadRequest).
		WithMetadata(key.fields())
}

// NewTokenExchangeError keeps the raw token endpoint body in the message so
// operators can see what the provider rejected.
func NewTokenExchangeError(providerID string, statusCode int, body string) *goerrors.Error {
	message := fmt.Sprintf("token exchange failed with status %d", statusCode)
	if body = truncateBody(body); body != "" {
		message += ": " + body
	}
	return newIntegrationError(message, goerrors.CategoryExternal, ErrorTokenExchangeFailed, http.StatusBadGateway).
		WithMetadata(map[string]any{"provider_id": providerID, "status_code": statusCode})
}

func WrapTokenExchangeError(providerID string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "token exchange request failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorTokenExchangeFailed).
		WithMetadata(map[string]any{"provider_id": providerID})
}

func NewCredentialNotFoundError(key CompositeKey) *goerrors.Error {
	return newIntegrationError("no credential available for this connection", goerrors.CategoryNotFound, ErrorCredentialNotFound, http.StatusNotFound).
		WithMetadata(key.fields())
}

func NewUpstreamAPIError(providerID string, category string, statusCode int, body string) *goerrors.Error {
	message := fmt.Sprintf("%s request failed with status %d", category, statusCode)
	if body = truncateBody(body); body != "" {
		message += ": " + body
	}
	return newIntegrationError(message, goerrors.CategoryExternal, ErrorUpstreamAPIFailed, http.StatusBadGateway).
		WithMetadata(map[string]any{"provider_id": providerID, "category": category, "status_code": statusCode})
}

func WrapUpstreamAPIError(providerID string, category string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, category+" request failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorUpstreamAPIFailed).
		WithMetadata(map[string]any{"provider_id": providerID, "category": category})
}

func NewBadInputError(message string) *goerrors.Error {
	return newIntegrationError(message, goerrors.CategoryBadInput, ErrorBadInput, http.StatusBadRequest)
}

// HasTextCode reports whether err carries the given integration text code.
func HasTextCode(err error, textCode string) bool {
	code := errorTextCode(err)
	return code != "" && strings.EqualFold(code, strings.TrimSpace(textCode))
}

func errorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	return strings.TrimSpace(richErr.TextCode)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, ErrorProviderNotFound, 0)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newIntegrationError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput, 0)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newIntegrationError(message string, category goerrors.Category, textCode string, status int) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if status > 0 {
		err.Code = status
	}
	return ensureServiceErrorEnvelope(err)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorStateMismatch
	case goerrors.CategoryExternal:
		return ErrorUpstreamAPIFailed
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxErrorBodyBytes {
		cut := maxErrorBodyBytes
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return body[:cut] + "..."
	}
	return body
}

// Package httpapi exposes the authorization flow over HTTP for the popup
// front-end: authorize, the provider redirect, the one-time credential read
// and item loading.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	integrations "github.com/goliatone/go-integrations"
	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

// closeWindowPage is served to the popup after a successful callback.
const closeWindowPage = `<html>
    <script>
        window.close();
    </script>
</html>
`

type HealthCheck func(ctx context.Context) error

type HandlerOption func(*Handler)

func WithHealthCheck(check HealthCheck) HandlerOption {
	return func(h *Handler) {
		h.healthCheck = check
	}
}

type Handler struct {
	facade      *integrations.Facade
	healthCheck HealthCheck
}

func NewHandler(facade *integrations.Facade, opts ...HandlerOption) (*Handler, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	handler := &Handler{facade: facade}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(handler)
	}
	return handler, nil
}

type identityForm struct {
	UserID string `form:"user_id" json:"user_id" binding:"required"`
	OrgID  string `form:"org_id" json:"org_id" binding:"required"`
}

type loadForm struct {
	Credentials string `form:"credentials" json:"credentials" binding:"required"`
}

// Authorize responds with the provider consent URL as a JSON string.
func (h *Handler) Authorize(c *gin.Context) {
	var form identityForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, httpWrapError(err, goerrors.CategoryBadInput, "user_id and org_id are required", http.StatusBadRequest))
		return
	}

	msg := integrationscommand.AuthorizeMessage{Request: core.AuthorizeRequest{
		ProviderID: c.Param("provider"),
		UserID:     form.UserID,
		OrgID:      form.OrgID,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}

	collector := gocmd.NewResult[core.AuthorizeResponse]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := h.facade.Commands().Authorize.Execute(ctx, msg); err != nil {
		abortWithError(c, err)
		return
	}
	out, ok := collector.Load()
	if !ok {
		abortWithError(c, httpError("authorize produced no result", goerrors.CategoryInternal, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, out.URL)
}

// Callback handles the provider redirect and closes the popup once the
// credential is stored.
func (h *Handler) Callback(c *gin.Context) {
	msg := integrationscommand.CallbackMessage{
		ProviderID: c.Param("provider"),
		Params: core.CallbackParams{
			Code:             c.Query("code"),
			State:            c.Query("state"),
			Error:            c.Query("error"),
			ErrorDescription: c.Query("error_description"),
		},
	}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.facade.Commands().Callback.Execute(c.Request.Context(), msg); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(closeWindowPage))
}

func (h *Handler) Credentials(c *gin.Context) {
	var form identityForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, httpWrapError(err, goerrors.CategoryBadInput, "user_id and org_id are required", http.StatusBadRequest))
		return
	}

	msg := integrationsquery.GetCredentialsMessage{Request: core.CredentialRequest{
		ProviderID: c.Param("provider"),
		UserID:     form.UserID,
		OrgID:      form.OrgID,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	credential, err := h.facade.Queries().GetCredentials.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, credential)
}

// AwaitCredentials holds the request until the callback stores the
// credential, the poll timeout passes or the client goes away. Either of the
// last two answers as credential not found.
func (h *Handler) AwaitCredentials(c *gin.Context) {
	var form identityForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, httpWrapError(err, goerrors.CategoryBadInput, "user_id and org_id are required", http.StatusBadRequest))
		return
	}

	msg := integrationsquery.AwaitCredentialsMessage{Request: core.CredentialRequest{
		ProviderID: c.Param("provider"),
		UserID:     form.UserID,
		OrgID:      form.OrgID,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	credential, err := h.facade.Queries().AwaitCredentials.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, credential)
}

// Load accepts the credential JSON returned by Credentials in the
// "credentials" form field.
func (h *Handler) Load(c *gin.Context) {
	var form loadForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, httpWrapError(err, goerrors.CategoryBadInput, "credentials are required", http.StatusBadRequest))
		return
	}
	var credential core.Credential
	if err := json.Unmarshal([]byte(strings.TrimSpace(form.Credentials)), &credential); err != nil {
		abortWithError(c, httpWrapError(err, goerrors.CategoryBadInput, "credentials must be a JSON object", http.StatusBadRequest))
		return
	}

	msg := integrationsquery.LoadMessage{ProviderID: c.Param("provider"), Credential: credential}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	result, err := h.facade.Queries().Load.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if result.Items == nil {
		result.Items = []core.IntegrationItem{}
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Health(c *gin.Context) {
	if h.healthCheck != nil {
		if err := h.healthCheck(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:    string(goerrors.CategoryInternal),
				TextCode: core.ErrorInternal,
				Message:  "store unavailable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	defaultTokenRequestTimeout    = 30 * time.Second
	defaultResourceRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes     = 1 << 20 // 1 MiB
)

// AuthStyle selects where the client secret travels on the token request.
type AuthStyle int

const (
	// AuthStyleInHeaderAndParams sends the secret in the form body and as a
	// Basic authorization header.
	AuthStyleInHeaderAndParams AuthStyle = iota
	AuthStyleInParams
	AuthStyleInHeader
)

type OAuth2Config struct {
	ID           string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	// RedirectURI is sent as configured on both the consent URL and the
	// token request.
	RedirectURI            string
	Scopes                 []string
	AuthStyle              AuthStyle
	Categories             []Category
	TokenRequestTimeout    time.Duration
	ResourceRequestTimeout time.Duration
	HTTPClient             *http.Client
}

type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient *http.Client
	categories map[string]Category
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
	Raw              map[string]any
}

// NewOAuth2Provider validates the endpoints and categories. Client settings
// may be empty at construction; AuthorizationURL reports them as
// configuration errors before any state is issued.
func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.ResourceRequestTimeout <= 0 {
		cfg.ResourceRequestTimeout = defaultResourceRequestTimeout
	}

	categories := make(map[string]Category, len(cfg.Categories))
	normalized := make([]Category, 0, len(cfg.Categories))
	for _, category := range cfg.Categories {
		category, err := category.normalize()
		if err != nil {
			return nil, fmt.Errorf("providers: provider %q: %w", cfg.ID, err)
		}
		if _, exists := categories[category.Tag]; exists {
			return nil, fmt.Errorf("providers: provider %q: duplicate category tag %q", cfg.ID, category.Tag)
		}
		categories[category.Tag] = category
		normalized = append(normalized, category)
	}
	cfg.Categories = normalized

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
		categories: categories,
	}, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Provider) Scopes() []string {
	if p == nil {
		return []string{}
	}
	return append([]string(nil), p.cfg.Scopes...)
}

func (p *OAuth2Provider) RedirectURI() string {
	if p == nil {
		return ""
	}
	return p.cfg.RedirectURI
}

// AuthorizationURL appends client_id, redirect_uri, response_type, scope and
// state to the consent endpoint in that order. Spaces encode as %20.
func (p *OAuth2Provider) AuthorizationURL(state string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 provider is nil")
	}
	if err := p.requireClientSettings(); err != nil {
		return "", err
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", fmt.Errorf("providers: state is required")
	}

	params := [][2]string{
		{"client_id", p.cfg.ClientID},
		{"redirect_uri", p.cfg.RedirectURI},
		{"response_type", "code"},
	}
	if len(p.cfg.Scopes) > 0 {
		params = append(params, [2]string{"scope", strings.Join(p.cfg.Scopes, " ")})
	}
	params = append(params, [2]string{"state", state})

	var builder strings.Builder
	builder.WriteString(p.cfg.AuthURL)
	separator := "?"
	if strings.Contains(p.cfg.AuthURL, "?") {
		separator = "&"
	}
	for _, param := range params {
		builder.WriteString(separator)
		builder.WriteString(param[0])
		builder.WriteByte('=')
		builder.WriteString(escapeQueryValue(param[1]))
		separator = "&"
	}
	return builder.String(), nil
}

// ExchangeCode trades an authorization code at the token endpoint. Any
// non-2xx answer surfaces as a token exchange error carrying the raw body.
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code string) (core.TokenGrant, error) {
	if p == nil {
		return core.TokenGrant{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if err := p.requireClientSettings(); err != nil {
		return core.TokenGrant{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.TokenGrant{}, fmt.Errorf("providers: auth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)

	payload, err := p.fetchToken(ctx, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        payload.Scope,
		ExpiresIn:    payload.ExpiresIn,
		Raw:          payload.Raw,
	}, nil
}

// requireClientSettings runs on authorize as well as exchange so a missing
// secret fails before the user consents and the state is spent.
func (p *OAuth2Provider) requireClientSettings() error {
	switch {
	case p.cfg.ClientID == "":
		return core.NewConfigurationError(p.cfg.ID, fmt.Sprintf("client id is not configured for provider %q", p.cfg.ID))
	case p.cfg.RedirectURI == "":
		return core.NewConfigurationError(p.cfg.ID, fmt.Sprintf("redirect uri is not configured for provider %q", p.cfg.ID))
	case p.cfg.ClientSecret == "":
		return core.NewConfigurationError(p.cfg.ID, fmt.Sprintf("client secret is not configured for provider %q", p.cfg.ID))
	}
	return nil
}

func (p *OAuth2Provider) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.AuthStyle != AuthStyleInHeader {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, core.WrapTokenExchangeError(p.cfg.ID, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if p.cfg.AuthStyle != AuthStyleInParams {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, core.WrapTokenExchangeError(p.cfg.ID, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, core.WrapTokenExchangeError(p.cfg.ID, readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, core.NewTokenExchangeError(
			p.cfg.ID,
			response.StatusCode,
			fmt.Sprintf("response exceeds %d bytes", maxTokenResponseBodyBytes),
		)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, core.NewTokenExchangeError(p.cfg.ID, response.StatusCode, string(body))
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return tokenEndpointPayload{}, core.NewTokenExchangeError(p.cfg.ID, response.StatusCode, string(body))
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, core.NewTokenExchangeError(p.cfg.ID, response.StatusCode, describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, core.NewTokenExchangeError(p.cfg.ID, response.StatusCode, "response missing access token")
	}
	return payload, nil
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
		Raw:              decoded,
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	raw := make(map[string]any, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
		Raw:              raw,
	}, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

// normalizeScopes trims and dedupes while keeping the configured order,
// which some consent screens display verbatim.
func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		for _, part := range strings.Fields(value) {
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			values = append(values, part)
		}
	}
	return values
}

func escapeQueryValue(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.Provider = (*OAuth2Provider)(nil)

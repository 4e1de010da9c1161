package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

func newTestProvider(t *testing.T, fake *devkit.FakeProvider, mutate func(*OAuth2Config)) *OAuth2Provider {
	t.Helper()
	cfg := OAuth2Config{
		ID:           "Acme",
		AuthURL:      fake.AuthURL(),
		TokenURL:     fake.TokenURL(),
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		RedirectURI:  "http://localhost:8000/integrations/acme/oauth2callback",
		Scopes:       []string{"read items", "oauth"},
		HTTPClient:   fake.Client(),
		Categories: []Category{
			{
				Tag:          "widget",
				Endpoint:     fake.URL("/v1/widgets"),
				Query:        url.Values{"fields": {"name,label"}},
				ResultsField: "results",
				Map: func(record Record) MappedItem {
					return MappedItem{
						NativeID: record.String("id"),
						Name:     FirstPopulated(record.String("props", "name"), record.String("props", "label")),
					}
				},
			},
			{
				Tag:        "gadget",
				Type:       "Gadget",
				Endpoint:   fake.URL("/v1/gadgets"),
				LimitParam: "per_page",
				Map: func(record Record) MappedItem {
					return MappedItem{NativeID: record.String("id"), Name: record.String("title")}
				},
			},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	provider, err := NewOAuth2Provider(cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestNewOAuth2Provider_RequiresIDAndEndpoints(t *testing.T) {
	if _, err := NewOAuth2Provider(OAuth2Config{}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := NewOAuth2Provider(OAuth2Config{ID: "acme", AuthURL: "https://example.com/auth"}); err == nil {
		t.Fatalf("expected missing token url validation error")
	}
	_, err := NewOAuth2Provider(OAuth2Config{
		ID:       "acme",
		AuthURL:  "https://example.com/auth",
		TokenURL: "https://example.com/token",
		Categories: []Category{
			{Tag: "a", Endpoint: "https://example.com/a", Map: func(Record) MappedItem { return MappedItem{} }},
			{Tag: "A", Endpoint: "https://example.com/b", Map: func(Record) MappedItem { return MappedItem{} }},
		},
	})
	if err == nil {
		t.Fatalf("expected duplicate category tags to be rejected")
	}
	_, err = NewOAuth2Provider(OAuth2Config{
		ID:         "acme",
		AuthURL:    "https://example.com/auth",
		TokenURL:   "https://example.com/token",
		Categories: []Category{{Tag: "a", Endpoint: "https://example.com/a"}},
	})
	if err == nil {
		t.Fatalf("expected category without mapping to be rejected")
	}
}

func TestAuthorizationURL_OrderedAndPercentEncoded(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	provider := newTestProvider(t, fake, nil)

	got, err := provider.AuthorizationURL("eyJzdGF0ZSI6InMifQ==")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	want := fake.AuthURL() +
		"?client_id=client-123" +
		"&redirect_uri=http%3A%2F%2Flocalhost%3A8000%2Fintegrations%2Facme%2Foauth2callback" +
		"&response_type=code" +
		"&scope=read%20items%20oauth" +
		"&state=eyJzdGF0ZSI6InMifQ%3D%3D"
	if got != want {
		t.Fatalf("unexpected authorization url\n got: %s\nwant: %s", got, want)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Query().Get("redirect_uri") != "http://localhost:8000/integrations/acme/oauth2callback" {
		t.Fatalf("expected redirect uri to round-trip verbatim")
	}
	if len(fake.TokenRequests()) != 0 {
		t.Fatalf("expected no network call while building the url")
	}
}

func TestAuthorizationURL_AppendsToExistingQuery(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	provider := newTestProvider(t, fake, func(cfg *OAuth2Config) {
		cfg.AuthURL = fake.AuthURL() + "?prompt=consent"
		cfg.Scopes = nil
	})
	got, err := provider.AuthorizationURL("s")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	if !strings.HasPrefix(got, fake.AuthURL()+"?prompt=consent&client_id=") {
		t.Fatalf("expected params appended to existing query, got %s", got)
	}
	if strings.Contains(got, "scope=") {
		t.Fatalf("expected no scope parameter without scopes, got %s", got)
	}
}

func TestAuthorizationURL_MissingClientSettingsIsConfigurationError(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	provider := newTestProvider(t, fake, func(cfg *OAuth2Config) { cfg.ClientID = "" })
	_, err := provider.AuthorizationURL("s")
	if !core.HasTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	provider = newTestProvider(t, fake, func(cfg *OAuth2Config) { cfg.ClientSecret = "" })
	if _, err := provider.AuthorizationURL("s"); !core.HasTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected authorize without a secret to be a configuration error, got %v", err)
	}
	_, err = provider.ExchangeCode(context.Background(), "code")
	if !core.HasTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error on exchange without secret, got %v", err)
	}
}

func TestExchangeCode_SendsSecretInBodyAndHeader(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptTokenJSON(http.StatusOK, map[string]any{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"token_type":    "Bearer",
		"expires_in":    1800,
		"hub_id":        42,
	})
	provider := newTestProvider(t, fake, nil)

	grant, err := provider.ExchangeCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if grant.AccessToken != "at-1" || grant.RefreshToken != "rt-1" || grant.TokenType != "bearer" || grant.ExpiresIn != 1800 {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if grant.Raw["hub_id"] == nil {
		t.Fatalf("expected raw provider payload to be kept, got %+v", grant.Raw)
	}

	requests := fake.TokenRequests()
	if len(requests) != 1 {
		t.Fatalf("expected one token request, got %d", len(requests))
	}
	form := requests[0].Form
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "code-1" {
		t.Fatalf("unexpected token form %v", form)
	}
	if form.Get("redirect_uri") != "http://localhost:8000/integrations/acme/oauth2callback" {
		t.Fatalf("expected configured redirect uri, got %q", form.Get("redirect_uri"))
	}
	if form.Get("client_id") != "client-123" || form.Get("client_secret") != "secret-456" {
		t.Fatalf("expected client credentials in body, got %v", form)
	}
	if !requests[0].HasBasic || requests[0].BasicUser != "client-123" || requests[0].BasicPass != "secret-456" {
		t.Fatalf("expected basic auth header, got %+v", requests[0])
	}
}

func TestExchangeCode_AuthStyles(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()

	inParams := newTestProvider(t, fake, func(cfg *OAuth2Config) { cfg.AuthStyle = AuthStyleInParams })
	if _, err := inParams.ExchangeCode(context.Background(), "c"); err != nil {
		t.Fatalf("exchange in params: %v", err)
	}
	inHeader := newTestProvider(t, fake, func(cfg *OAuth2Config) { cfg.AuthStyle = AuthStyleInHeader })
	if _, err := inHeader.ExchangeCode(context.Background(), "c"); err != nil {
		t.Fatalf("exchange in header: %v", err)
	}

	requests := fake.TokenRequests()
	if len(requests) != 2 {
		t.Fatalf("expected two token requests, got %d", len(requests))
	}
	if requests[0].HasBasic || requests[0].Form.Get("client_secret") != "secret-456" {
		t.Fatalf("expected body-only secret, got %+v", requests[0])
	}
	if !requests[1].HasBasic || requests[1].Form.Get("client_secret") != "" {
		t.Fatalf("expected header-only secret, got %+v", requests[1])
	}
}

func TestExchangeCode_NonSuccessIsTokenExchangeErrorWithBody(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptToken(devkit.ResponseScript{
		Status: http.StatusBadRequest,
		Body:   `{"status":"BAD_AUTH_CODE","message":"missing or unknown auth code"}`,
	})
	provider := newTestProvider(t, fake, nil)

	_, err := provider.ExchangeCode(context.Background(), "stale")
	if !core.HasTextCode(err, core.ErrorTokenExchangeFailed) {
		t.Fatalf("expected token exchange error, got %v", err)
	}
	if !strings.Contains(err.Error(), "BAD_AUTH_CODE") {
		t.Fatalf("expected raw body in error, got %v", err)
	}
}

func TestExchangeCode_FormEncodedResponseAndMissingToken(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptToken(
		devkit.ResponseScript{
			Status:      http.StatusOK,
			Body:        "access_token=form-token&scope=repo&token_type=bearer",
			ContentType: "application/x-www-form-urlencoded",
		},
		devkit.ResponseScript{Status: http.StatusOK, Body: `{"token_type":"bearer"}`},
	)
	provider := newTestProvider(t, fake, nil)

	grant, err := provider.ExchangeCode(context.Background(), "c")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if grant.AccessToken != "form-token" || grant.Scope != "repo" {
		t.Fatalf("unexpected form grant %+v", grant)
	}

	_, err = provider.ExchangeCode(context.Background(), "c")
	if !core.HasTextCode(err, core.ErrorTokenExchangeFailed) {
		t.Fatalf("expected missing access token to fail the exchange, got %v", err)
	}
}

func TestFetchCategory_MapsRecordsWithBearerToken(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptResource("/v1/widgets", devkit.ResponseScript{Body: `{"results":[
		{"id":"1","props":{"name":"Alpha"}},
		{"id":2,"props":{"label":"Beta label"}},
		{"id":"3","props":{}},
		{"props":{"name":"no id"}}
	]}`})
	provider := newTestProvider(t, fake, nil)

	items, err := provider.FetchCategory(
		context.Background(),
		core.ResourceCategory{Tag: "widget"},
		core.Credential{AccessToken: "at-1", TokenType: "bearer"},
		20,
	)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %+v", items)
	}
	expected := []core.IntegrationItem{
		{ID: "1_widget", Type: "widget", Name: "Alpha"},
		{ID: "2_widget", Type: "widget", Name: "Beta label"},
		{ID: "3_widget", Type: "widget", Name: "3"},
	}
	for index, want := range expected {
		got := items[index]
		if got.ID != want.ID || got.Type != want.Type || got.Name != want.Name {
			t.Fatalf("item %d: expected %+v, got %+v", index, want, got)
		}
	}

	requests := fake.ResourceRequests()
	if len(requests) != 1 {
		t.Fatalf("expected one resource request, got %d", len(requests))
	}
	if requests[0].Authorization != "Bearer at-1" {
		t.Fatalf("expected bearer token, got %q", requests[0].Authorization)
	}
	if requests[0].Query.Get("limit") != "20" || requests[0].Query.Get("fields") != "name,label" {
		t.Fatalf("unexpected query %v", requests[0].Query)
	}
}

func TestFetchCategory_TopLevelArrayAndLimit(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptResource("/v1/gadgets", devkit.ResponseScript{Body: `[
		{"id":"g1","title":"One"},{"id":"g2","title":"Two"},{"id":"g3","title":"Three"}
	]`})
	provider := newTestProvider(t, fake, nil)

	items, err := provider.FetchCategory(context.Background(), core.ResourceCategory{Tag: "gadget"}, core.Credential{AccessToken: "t"}, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 || items[0].ID != "g1_gadget" || items[1].Type != "Gadget" {
		t.Fatalf("unexpected items %+v", items)
	}
	if got := fake.ResourceRequests()[0].Query.Get("per_page"); got != "2" {
		t.Fatalf("expected per_page=2, got %q", got)
	}
}

func TestFetchCategory_NonSuccessIsUpstreamAPIError(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	fake.ScriptResource("/v1/widgets", devkit.ResponseScript{Status: http.StatusForbidden, Body: `{"message":"scope missing"}`})
	provider := newTestProvider(t, fake, nil)

	_, err := provider.FetchCategory(context.Background(), core.ResourceCategory{Tag: "widget"}, core.Credential{AccessToken: "t"}, 20)
	if !core.HasTextCode(err, core.ErrorUpstreamAPIFailed) {
		t.Fatalf("expected upstream api error, got %v", err)
	}
	if !strings.Contains(err.Error(), "scope missing") {
		t.Fatalf("expected upstream body in error, got %v", err)
	}

	fake.ScriptResource("/v1/widgets", devkit.ResponseScript{Body: `not json`})
	_, err = provider.FetchCategory(context.Background(), core.ResourceCategory{Tag: "widget"}, core.Credential{AccessToken: "t"}, 20)
	if !core.HasTextCode(err, core.ErrorUpstreamAPIFailed) {
		t.Fatalf("expected undecodable body to be an upstream api error, got %v", err)
	}
}

func TestFetchCategory_UnknownCategory(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	provider := newTestProvider(t, fake, nil)
	if _, err := provider.FetchCategory(context.Background(), core.ResourceCategory{Tag: "nope"}, core.Credential{AccessToken: "t"}, 20); err == nil {
		t.Fatalf("expected unknown category to fail")
	}
}

func TestCategories_KeepConfiguredOrder(t *testing.T) {
	fake := devkit.NewFakeProvider()
	defer fake.Close()
	provider := newTestProvider(t, fake, nil)
	categories := provider.Categories()
	if len(categories) != 2 || categories[0].Tag != "widget" || categories[1].Tag != "gadget" {
		t.Fatalf("unexpected categories %+v", categories)
	}
	if provider.ID() != "acme" {
		t.Fatalf("expected normalized id, got %q", provider.ID())
	}
	if err := devkit.ValidateProviderConformance(provider, "abc="); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestRecordString(t *testing.T) {
	record := Record{
		"id":         float64(7),
		"properties": map[string]any{"firstname": " Ada ", "nested": map[string]any{"x": 1}},
		"list":       []any{"a"},
		"nil":        nil,
	}
	if record.String("properties", "firstname") != "Ada" {
		t.Fatalf("expected trimmed nested string")
	}
	if record.String("properties", "nested") != "" || record.String("list") != "" || record.String("nil") != "" {
		t.Fatalf("expected non-scalars and null to read empty")
	}
	if record.String("missing", "x") != "" {
		t.Fatalf("expected missing path to read empty")
	}
	if FirstPopulated("", "  ", "b", "c") != "b" {
		t.Fatalf("expected first populated value")
	}
}

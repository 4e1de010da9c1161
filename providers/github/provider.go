package github

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID = "github"
	AuthURL    = "https://github.com/login/oauth/authorize"
	TokenURL   = "https://github.com/login/oauth/access_token"
	APIBaseURL = "https://api.github.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		Scopes:     []string{"repo", "read:user"},
	}
}

// New returns a single-category provider listing the user's repositories.
// GitHub expects the client secret in the form body only.
func New(cfg Config) (core.Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                     ProviderID,
		AuthURL:                cfg.AuthURL,
		TokenURL:               cfg.TokenURL,
		ClientID:               cfg.ClientID,
		ClientSecret:           cfg.ClientSecret,
		RedirectURI:            cfg.RedirectURI,
		Scopes:                 cfg.Scopes,
		AuthStyle:              providers.AuthStyleInParams,
		TokenRequestTimeout:    cfg.Timeout,
		ResourceRequestTimeout: cfg.Timeout,
		HTTPClient:             cfg.HTTPClient,
		Categories: []providers.Category{
			{
				Tag:        "repository",
				Type:       "repository",
				Endpoint:   strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/") + "/user/repos",
				LimitParam: "per_page",
				Map: func(record providers.Record) providers.MappedItem {
					id := record.String("id")
					return providers.MappedItem{
						NativeID: id,
						Name:     providers.FirstPopulated(record.String("full_name"), record.String("name"), id),
						Metadata: map[string]any{
							"private":  record["private"],
							"html_url": record.String("html_url"),
						},
					}
				},
			},
		},
	})
}

package hubspot

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID   = "hubspot"
	AuthURL      = "https://app.hubspot.com/oauth/authorize"
	TokenURL     = "https://api.hubapi.com/oauth/v1/token"
	APIBaseURL   = "https://api.hubapi.com"
	contactsPath = "/crm/v3/objects/contacts"
	companyPath  = "/crm/v3/objects/companies"
)

var DefaultScopes = []string{
	"crm.objects.contacts.read",
	"crm.schemas.contacts.read",
	"crm.objects.companies.read",
	"crm.schemas.companies.read",
	"oauth",
}

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
		Scopes:     append([]string(nil), DefaultScopes...),
	}
}

// New returns the HubSpot CRM provider: contacts then companies, each
// listed from the v3 objects API with the properties the names need.
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
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                     ProviderID,
		AuthURL:                cfg.AuthURL,
		TokenURL:               cfg.TokenURL,
		ClientID:               cfg.ClientID,
		ClientSecret:           cfg.ClientSecret,
		RedirectURI:            cfg.RedirectURI,
		Scopes:                 cfg.Scopes,
		AuthStyle:              providers.AuthStyleInHeaderAndParams,
		TokenRequestTimeout:    cfg.Timeout,
		ResourceRequestTimeout: cfg.Timeout,
		HTTPClient:             cfg.HTTPClient,
		Categories: []providers.Category{
			{
				Tag:          "contact",
				Type:         "contact",
				Endpoint:     base + contactsPath,
				Query:        url.Values{"properties": {"firstname,lastname,email"}},
				ResultsField: "results",
				Map:          mapContact,
			},
			{
				Tag:          "company",
				Type:         "company",
				Endpoint:     base + companyPath,
				Query:        url.Values{"properties": {"name,domain"}},
				ResultsField: "results",
				Map:          mapCompany,
			},
		},
	})
}

// mapContact names a contact "first last", then email, then id.
func mapContact(record providers.Record) providers.MappedItem {
	id := record.String("id")
	fullName := strings.TrimSpace(record.String("properties", "firstname") + " " + record.String("properties", "lastname"))
	return providers.MappedItem{
		NativeID: id,
		Name:     providers.FirstPopulated(fullName, record.String("properties", "email"), id),
	}
}

func mapCompany(record providers.Record) providers.MappedItem {
	id := record.String("id")
	return providers.MappedItem{
		NativeID: id,
		Name: providers.FirstPopulated(
			record.String("properties", "name"),
			record.String("properties", "domain"),
			id,
		),
	}
}

package integrations

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/github"
	"github.com/goliatone/go-integrations/providers/hubspot"
)

// ClientSettings are the OAuth2 client values issued by a provider's
// developer console. They are read from the environment at startup.
type ClientSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (s ClientSettings) empty() bool {
	return strings.TrimSpace(s.ClientID) == "" &&
		strings.TrimSpace(s.ClientSecret) == "" &&
		strings.TrimSpace(s.RedirectURI) == ""
}

// validate rejects partly configured settings so a provider is either fully
// usable or absent.
func (s ClientSettings) validate(providerID string) error {
	missing := []string{}
	if strings.TrimSpace(s.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(s.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(s.RedirectURI) == "" {
		missing = append(missing, "redirect uri")
	}
	if len(missing) == 0 {
		return nil
	}
	return core.NewConfigurationError(providerID, fmt.Sprintf(
		"provider %q is missing %s", providerID, strings.Join(missing, ", "),
	))
}

func HubSpotProvider(cfg hubspot.Config) (core.Provider, error) {
	return hubspot.New(cfg)
}

func GitHubProvider(cfg github.Config) (core.Provider, error) {
	return github.New(cfg)
}

// BuiltInProviders builds every bundled provider with settings. Providers
// with empty settings are skipped; partly configured ones fail with a
// configuration error.
func BuiltInProviders(settings map[string]ClientSettings) ([]core.Provider, error) {
	for _, id := range []string{hubspot.ProviderID, github.ProviderID} {
		if s, ok := settings[id]; ok && !s.empty() {
			if err := s.validate(id); err != nil {
				return nil, err
			}
		}
	}

	out := []core.Provider{}
	if s, ok := settings[hubspot.ProviderID]; ok && !s.empty() {
		provider, err := HubSpotProvider(hubspot.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RedirectURI:  s.RedirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("integrations: build %s provider: %w", hubspot.ProviderID, err)
		}
		out = append(out, provider)
	}
	if s, ok := settings[github.ProviderID]; ok && !s.empty() {
		provider, err := GitHubProvider(github.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RedirectURI:  s.RedirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("integrations: build %s provider: %w", github.ProviderID, err)
		}
		out = append(out, provider)
	}
	return out, nil
}

// NewRegistry registers providers in order and rejects duplicate ids.
func NewRegistry(providers ...core.Provider) (*core.ProviderRegistry, error) {
	registry := core.NewProviderRegistry()
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

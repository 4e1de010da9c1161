package integrations

import (
	"context"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/github"
	"github.com/goliatone/go-integrations/providers/hubspot"
)

func TestBuiltInProviderFactories(t *testing.T) {
	hub, err := HubSpotProvider(hubspot.Config{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("hubspot provider: %v", err)
	}
	if hub.ID() != hubspot.ProviderID {
		t.Fatalf("expected %q, got %q", hubspot.ProviderID, hub.ID())
	}
	gh, err := GitHubProvider(github.Config{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("github provider: %v", err)
	}
	if gh.ID() != github.ProviderID {
		t.Fatalf("expected %q, got %q", github.ProviderID, gh.ID())
	}
}

func TestBuiltInProviders_SkipsUnconfigured(t *testing.T) {
	providers, err := BuiltInProviders(map[string]ClientSettings{
		hubspot.ProviderID: {ClientID: "client", ClientSecret: "secret", RedirectURI: "https://app.example.com/cb"},
		github.ProviderID:  {},
	})
	if err != nil {
		t.Fatalf("built-in providers: %v", err)
	}
	if len(providers) != 1 || providers[0].ID() != hubspot.ProviderID {
		t.Fatalf("expected only hubspot, got %d providers", len(providers))
	}

	registry, err := NewRegistry(providers...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, ok := registry.Get(hubspot.ProviderID); !ok {
		t.Fatalf("expected hubspot to be registered")
	}
	if _, err := NewRegistry(providers[0], providers[0]); err == nil {
		t.Fatalf("expected duplicate provider to be rejected")
	}
}

func TestBuiltInProviders_RejectsPartialSettings(t *testing.T) {
	cases := map[string]ClientSettings{
		"secret only":      {ClientSecret: "secret"},
		"missing secret":   {ClientID: "client", RedirectURI: "https://app.example.com/cb"},
		"missing redirect": {ClientID: "client", ClientSecret: "secret"},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			providers, err := BuiltInProviders(map[string]ClientSettings{hubspot.ProviderID: settings})
			if !core.HasTextCode(err, core.ErrorConfiguration) {
				t.Fatalf("expected configuration error, got providers=%d err=%v", len(providers), err)
			}
		})
	}
}

func TestService_AuthorizeWithoutSecretLeavesNoState(t *testing.T) {
	provider, err := HubSpotProvider(hubspot.Config{
		ClientID:    "client",
		RedirectURI: "https://app.example.com/integrations/hubspot/oauth2callback",
	})
	if err != nil {
		t.Fatalf("new hubspot provider: %v", err)
	}
	registry, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	store := core.NewMemoryStore()
	svc, err := NewService(DefaultConfig(), WithRegistry(registry), WithStore(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Authorize(context.Background(), core.AuthorizeRequest{ProviderID: hubspot.ProviderID, UserID: "u1", OrgID: "o1"})
	if !core.HasTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error before consent, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no pending state, got %d entries", store.Len())
	}
}

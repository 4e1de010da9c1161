package core

import (
	"net/url"
	"strings"
)

const (
	stateKeyKind      = "state"
	credentialKeyKind = "credentials"
)

// StoreKey builds the namespaced key for one record kind. Segments are query
// escaped so user supplied ids cannot forge a neighbouring key.
func StoreKey(prefix string, kind string, key CompositeKey) string {
	key = key.Normalize()
	return strings.Join([]string{
		strings.TrimSpace(prefix),
		kind,
		url.QueryEscape(key.ProviderID),
		url.QueryEscape(key.OrgID),
		url.QueryEscape(key.UserID),
	}, ":")
}

func (s *Service) stateKey(key CompositeKey) string {
	return StoreKey(s.config.KeyPrefix, stateKeyKind, key)
}

func (s *Service) credentialKey(key CompositeKey) string {
	return StoreKey(s.config.KeyPrefix, credentialKeyKind, key)
}

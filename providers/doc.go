// Package providers implements core.Provider for OAuth2 authorization-code
// services. A provider is described by its endpoints, scopes and resource
// categories; hubspot and github build on OAuth2Provider with their own
// descriptors.
package providers

// Package core contains the authorization-flow orchestrator: CSRF state
// issuance, callback validation, the one-time credential vault and item
// loading. Provider descriptors, durable stores and transports live in
// sibling packages and depend on core, never the other way around.
package core

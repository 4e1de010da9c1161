package devkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// ValidateKVStoreConformance exercises the KVStore contract on a key that
// holds no value yet: overwrite, single-use take and delete.
func ValidateKVStoreConformance(ctx context.Context, store core.KVStore, key string) error {
	if store == nil {
		return fmt.Errorf("devkit: kv store is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("devkit: key is required")
	}

	if err := store.Put(ctx, key, []byte("first"), time.Minute); err != nil {
		return fmt.Errorf("devkit: put: %w", err)
	}
	if err := store.Put(ctx, key, []byte("second"), time.Minute); err != nil {
		return fmt.Errorf("devkit: overwrite: %w", err)
	}
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get: %w", err)
	}
	if !found || string(value) != "second" {
		return fmt.Errorf("devkit: expected overwritten value, got %q (found=%v)", value, found)
	}

	value, found, err = store.Take(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: take: %w", err)
	}
	if !found || string(value) != "second" {
		return fmt.Errorf("devkit: expected take to return the value, got %q (found=%v)", value, found)
	}
	if _, found, err := store.Take(ctx, key); err != nil {
		return fmt.Errorf("devkit: second take: %w", err)
	} else if found {
		return fmt.Errorf("devkit: second take should miss")
	}

	if err := store.Put(ctx, key, []byte("v"), time.Minute); err != nil {
		return fmt.Errorf("devkit: put before delete: %w", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("devkit: delete: %w", err)
	}
	if _, found, err := store.Get(ctx, key); err != nil {
		return fmt.Errorf("devkit: get after delete: %w", err)
	} else if found {
		return fmt.Errorf("devkit: deleted key should be absent")
	}
	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("devkit: deleting a missing key should succeed: %w", err)
	}
	return nil
}

// ValidateProviderConformance checks the static surface of a provider: an
// id, an authorization URL that carries the given state and code response
// type, and unique category tags.
func ValidateProviderConformance(provider core.Provider, state string) error {
	if provider == nil {
		return fmt.Errorf("devkit: provider is required")
	}
	if strings.TrimSpace(provider.ID()) == "" {
		return fmt.Errorf("devkit: provider id is required")
	}
	rawURL, err := provider.AuthorizationURL(state)
	if err != nil {
		return fmt.Errorf("devkit: authorization url: %w", err)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("devkit: authorization url is invalid: %w", err)
	}
	query := parsed.Query()
	if query.Get("state") != state {
		return fmt.Errorf("devkit: authorization url state %q does not match %q", query.Get("state"), state)
	}
	if query.Get("response_type") != "code" {
		return fmt.Errorf("devkit: authorization url must request response_type=code")
	}
	if strings.Contains(parsed.RawQuery, "+") {
		return fmt.Errorf("devkit: authorization url must encode spaces as %%20")
	}

	seen := map[string]struct{}{}
	for _, category := range provider.Categories() {
		tag := strings.TrimSpace(category.Tag)
		if tag == "" {
			return fmt.Errorf("devkit: category tag is required")
		}
		if _, ok := seen[tag]; ok {
			return fmt.Errorf("devkit: duplicate category tag %q", tag)
		}
		seen[tag] = struct{}{}
	}
	return nil
}

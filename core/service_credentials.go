package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetCredentials hands the stored credential out exactly once. A second call
// for the same key, or a call after the TTL elapsed, is a not-found error.
func (s *Service) GetCredentials(ctx context.Context, req CredentialRequest) (credential Credential, err error) {
	startedAt := s.now()
	key := req.Key()
	fields := key.fields()
	defer func() {
		s.observeOperation(ctx, startedAt, "get_credentials", err, fields)
	}()

	if err = key.Validate(); err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	credential, found, err := s.takeCredential(ctx, key)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	if !found {
		err = s.mapError(NewCredentialNotFoundError(key))
		return Credential{}, err
	}
	return credential, nil
}

// AwaitCredentials polls the vault until the callback for key has stored a
// credential, the configured poll timeout passes, or ctx ends.
func (s *Service) AwaitCredentials(ctx context.Context, req CredentialRequest) (credential Credential, err error) {
	startedAt := s.now()
	key := req.Key()
	fields := key.fields()
	attempts := 0
	defer func() {
		fields["attempts"] = attempts
		s.observeOperation(ctx, startedAt, "await_credentials", err, fields)
	}()

	if err = key.Validate(); err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}

	timeout := time.NewTimer(s.config.Poll.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(s.config.Poll.Interval)
	defer ticker.Stop()

	for {
		attempts++
		var found bool
		credential, found, err = s.takeCredential(ctx, key)
		if err != nil {
			err = s.mapError(err)
			return Credential{}, err
		}
		if found {
			return credential, nil
		}

		select {
		case <-ctx.Done():
			err = s.mapError(NewCredentialNotFoundError(key).WithMetadata(map[string]any{"reason": ctx.Err().Error()}))
			return Credential{}, err
		case <-timeout.C:
			err = s.mapError(NewCredentialNotFoundError(key).WithMetadata(map[string]any{"reason": "poll timeout"}))
			return Credential{}, err
		case <-ticker.C:
		}
	}
}

func (s *Service) takeCredential(ctx context.Context, key CompositeKey) (Credential, bool, error) {
	raw, found, err := s.store.Take(ctx, s.credentialKey(key))
	if err != nil {
		return Credential{}, false, err
	}
	if !found {
		return Credential{}, false, nil
	}
	var credential Credential
	if err := json.Unmarshal(raw, &credential); err != nil {
		return Credential{}, false, fmt.Errorf("core: decode credential: %w", err)
	}
	return credential, true, nil
}

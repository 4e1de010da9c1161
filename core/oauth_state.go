package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const csrfTokenBytes = 32

// stateParam is the value carried through the provider round trip in the
// `state` query parameter.
type stateParam struct {
	State  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func encodeStateParam(param stateParam) (string, error) {
	payload, err := json.Marshal(param)
	if err != nil {
		return "", fmt.Errorf("core: encode state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

// decodeStateParam accepts padded and unpadded base64url since some
// providers strip trailing '=' when echoing state back.
func decodeStateParam(raw string) (stateParam, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return stateParam{}, fmt.Errorf("core: state is required")
	}
	payload, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		payload, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return stateParam{}, fmt.Errorf("core: state is malformed: %w", err)
		}
	}
	var param stateParam
	if err := json.Unmarshal(payload, &param); err != nil {
		return stateParam{}, fmt.Errorf("core: state is malformed: %w", err)
	}
	if strings.TrimSpace(param.State) == "" {
		return stateParam{}, fmt.Errorf("core: state token is required")
	}
	return param, nil
}

func decodeAuthorizationState(raw []byte) (AuthorizationState, error) {
	var record AuthorizationState
	if err := json.Unmarshal(raw, &record); err != nil {
		return AuthorizationState{}, fmt.Errorf("core: decode authorization state: %w", err)
	}
	return record, nil
}

func csrfTokensEqual(left string, right string) bool {
	if left == "" || right == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(left), []byte(right)) == 1
}

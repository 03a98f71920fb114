package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"tailor/internal/infra"
	"tailor/internal/sqlinline"
)

const (
	ProviderGemini      = "gemini"
	ProviderSegment     = "segment"
	ProviderFulfillment = "fulfillment"
)

// Providers lists the integrations whose keys may be stored.
var Providers = []string{ProviderGemini, ProviderSegment, ProviderFulfillment}

func ValidProvider(name string) bool {
	return slices.Contains(Providers, name)
}

// Credential is a stored key and when it was last rotated.
type Credential struct {
	Provider  string
	Token     string
	RotatedAt time.Time
}

// Store keeps provider API keys in Postgres so the worker picks up a
// rotated key on restart without a redeploy.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Lookup returns the stored credential. ok is false when none is stored.
func (s *Store) Lookup(ctx context.Context, provider string) (Credential, bool, error) {
	cred := Credential{Provider: provider}
	err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider).Scan(&cred.Token, &cred.RotatedAt)
	if infra.IsNoRows(err) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("credentials: lookup %s: %w", provider, err)
	}
	cred.Token = strings.TrimSpace(cred.Token)
	return cred, cred.Token != "", nil
}

// Token returns the stored key for provider, or "".
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	cred, _, err := s.Lookup(ctx, provider)
	return cred.Token, err
}

// Resolve uses the configured value when set and the stored key otherwise.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken stores key for provider. Only the key's last four characters
// are kept alongside it, so operators can tell which key is live.
func (s *Store) SetToken(ctx context.Context, provider, key string) error {
	if !ValidProvider(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	props, err := json.Marshal(map[string]string{"suffix": suffix(key)})
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, props); err != nil {
		return fmt.Errorf("credentials: store %s: %w", provider, err)
	}
	return nil
}

func suffix(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return key[len(key)-4:]
}

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"rodinstudio/internal/infra"
	"rodinstudio/internal/sqlinline"
)

const (
	ProviderRodin = "rodin"
)

// ErrEmptyToken is returned when storing a blank token.
var ErrEmptyToken = errors.New("rodin api key is required")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens)
	return err
}

func (s *Store) RodinAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderRodin)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetRodinAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyToken
	}
	return s.upsert(ctx, ProviderRodin, key, props)
}

func (s *Store) DeleteRodinAPIKey(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderRodin)
	return err
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// KeySource yields the upstream bearer key: the static key when set, else the
// stored token, cached for ttl.
type KeySource struct {
	static string
	store  *Store
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	cached  string
	fetched time.Time
}

func NewKeySource(static string, store *Store, ttl time.Duration) *KeySource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &KeySource{static: strings.TrimSpace(static), store: store, ttl: ttl, now: time.Now}
}

func (k *KeySource) APIKey(ctx context.Context) (string, error) {
	if k.static != "" || k.store == nil {
		return k.static, nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cached != "" && k.now().Sub(k.fetched) < k.ttl {
		return k.cached, nil
	}
	key, err := k.store.RodinAPIKey(ctx)
	if err != nil {
		return "", err
	}
	k.cached = key
	k.fetched = k.now()
	return key, nil
}

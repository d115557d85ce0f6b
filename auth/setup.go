package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/gaborage/courier/cache/redis"
	"github.com/gaborage/courier/config"
	"github.com/gaborage/courier/logger"
)

// defaultSalt is used by file stores that configure no salt of their own.
const defaultSalt = "courier/token-store/v1"

// Setup is the token plumbing described by an auth configuration.
type Setup struct {
	// Store always holds a usable token store.
	Store TokenStore
	// Authenticator is nil when auth is disabled.
	Authenticator Authenticator

	cfg     config.AuthConfig
	log     logger.Logger
	closers []io.Closer

	mu          sync.Mutex
	coordinator *Coordinator
}

// NewFromConfig builds the token store and authenticator cfg names. A
// configured AccessToken seeds the store only when it holds no token yet.
// Call Close to release backend connections.
func NewFromConfig(cfg config.AuthConfig, log logger.Logger) (*Setup, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Setup{cfg: cfg, log: log}

	store, err := s.newStore()
	if err != nil {
		return nil, err
	}
	s.Store = store
	if cfg.AccessToken != "" {
		if _, ok := store.Read(); !ok {
			store.Write(cfg.AccessToken)
		}
	}

	if cfg.Enabled {
		authn, err := newAuthenticator(cfg)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Authenticator = authn
	}

	log.Info().
		Str("store", storeType(cfg)).
		Bool("refresh", s.Authenticator != nil).
		Str("grant", cfg.Grant).
		Msg("Token plumbing configured")
	return s, nil
}

func storeType(cfg config.AuthConfig) string {
	if cfg.Store.Type == "" {
		return config.StoreMemory
	}
	return cfg.Store.Type
}

func (s *Setup) newStore() (TokenStore, error) {
	sc := s.cfg.Store
	switch storeType(s.cfg) {
	case config.StoreMemory:
		return NewMemoryStore(""), nil
	case config.StoreFile:
		salt := sc.Salt
		if salt == "" {
			salt = defaultSalt
		}
		return NewFileStore(sc.Path, DeriveKey([]byte(sc.Passphrase), []byte(salt)), s.log)
	case config.StoreRedis:
		client, err := redis.NewClient(&redis.Config{
			Host:      sc.Redis.Host,
			Port:      sc.Redis.Port,
			Password:  sc.Redis.Password,
			Database:  sc.Redis.Database,
			PoolSize:  sc.Redis.PoolSize,
			KeyPrefix: sc.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: redis token store: %w", err)
		}
		s.closers = append(s.closers, client)
		return NewCacheStore(client, sc.Key, sc.TTL, s.log), nil
	default:
		return nil, fmt.Errorf("auth: unknown token store type %q", sc.Type)
	}
}

func newAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Grant {
	case config.GrantRefreshToken, "":
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		}
		return NewOAuth2Authenticator(oc, cfg.RefreshToken), nil
	case config.GrantClientCredentials:
		return NewClientCredentialsAuthenticator(&clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}), nil
	default:
		return nil, fmt.Errorf("auth: unknown grant %q", cfg.Grant)
	}
}

// Coordinator returns the refresh coordinator over the configured store, or
// nil when auth is disabled. The coordinator is created once; opts are
// honored on the first call only, after the configured timeout and logger.
func (s *Setup) Coordinator(opts ...Option) *Coordinator {
	if s.Authenticator == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator == nil {
		base := []Option{WithLogger(s.log)}
		if s.cfg.RefreshTimeout > 0 {
			base = append(base, WithRefreshTimeout(s.cfg.RefreshTimeout))
		}
		s.coordinator = NewCoordinator(s.Store, s.Authenticator, append(base, opts...)...)
	}
	return s.coordinator
}

// Token fetches a token right away when the store is empty and auth is
// enabled. It is meant for startup, before the first request.
func (s *Setup) Token(ctx context.Context) (string, error) {
	if tok, ok := s.Store.Read(); ok {
		return tok, nil
	}
	c := s.Coordinator()
	if c == nil {
		return "", ErrNoToken
	}
	return c.Refresh(ctx).Wait(ctx)
}

// Close releases backend connections opened by NewFromConfig.
func (s *Setup) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("jwks key not found")

// minRefreshGap limits refetches triggered by unknown key ids, so tokens with made-up
// kids cannot hammer the identity provider.
const minRefreshGap = 30 * time.Second

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSClient caches RSA public keys published by the identity provider. Lookups of
// cached keys never wait on the network; concurrent refreshes collapse into one fetch.
type JWKSClient struct {
	url  string
	ttl  time.Duration
	http *http.Client
	now  func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
	lastFetch time.Time
}

func NewJWKSClient(url string, ttl time.Duration) *JWKSClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWKSClient{
		url:  url,
		ttl:  ttl,
		http: &http.Client{Timeout: 5 * time.Second},
		now:  time.Now,
		keys: map[string]*rsa.PublicKey{},
	}
}

func (c *JWKSClient) Get(keyID string) (*rsa.PublicKey, error) {
	key, fresh, canFetch := c.lookup(keyID)
	if key != nil && fresh {
		return key, nil
	}
	if !canFetch {
		if key != nil {
			return key, nil
		}
		return nil, ErrKeyNotFound
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(context.Background())
	})
	if updated, _, _ := c.lookup(keyID); updated != nil {
		return updated, nil
	}
	// Stale keys keep working while the endpoint is down.
	if err != nil {
		if key != nil {
			return key, nil
		}
		return nil, err
	}
	return nil, ErrKeyNotFound
}

func (c *JWKSClient) lookup(keyID string) (key *rsa.PublicKey, fresh bool, canFetch bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	key = c.keys[keyID]
	fresh = now.Before(c.expires)
	canFetch = c.lastFetch.IsZero() || now.Sub(c.lastFetch) >= minRefreshGap
	return key, fresh, canFetch
}

func (c *JWKSClient) refresh(ctx context.Context) error {
	c.mu.Lock()
	c.lastFetch = c.now()
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var data struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(data.Keys))
	for _, k := range data.Keys {
		if k.Kty != "RSA" || k.N == "" || k.E == "" || k.Kid == "" {
			continue
		}
		pub, err := jwkToPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

func jwkToPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("invalid jwk exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

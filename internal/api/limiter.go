package api

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"guestms/internal/config"

	"golang.org/x/time/rate"
)

// Permissions granted to API keys. A key with no permissions may do anything.
const (
	PermReadRooms         = "read:rooms"
	PermWriteRooms        = "write:rooms"
	PermReadReservations  = "read:reservations"
	PermWriteReservations = "write:reservations"
	PermWriteCustomers    = "write:customers"
	PermAdmin             = "admin"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"
)

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

// keyring resolves API keys shared by the HTTP and gRPC front ends.
type keyring struct {
	apiKeyHeader string
	extraHeader  string
	clients      map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	k := &keyring{
		apiKeyHeader: strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey)),
		extraHeader:  strings.ToLower(strings.TrimSpace(cfg.HeaderExtra)),
		clients:      make(map[string]config.APIClientKey, len(cfg.APIKeys)),
	}
	if k.apiKeyHeader == "" {
		k.apiKeyHeader = apiKeyHeaderDefault
	}
	if k.extraHeader == "" {
		k.extraHeader = apiExtraHeaderDefault
	}
	for _, c := range cfg.APIKeys {
		k.clients[c.Key] = c
	}
	return k
}

// authenticate checks the key pair and that the client holds required.
func (k *keyring) authenticate(apiKey, extra, required string) (config.APIClientKey, error) {
	apiKey = strings.TrimSpace(apiKey)
	extra = strings.TrimSpace(extra)
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingCredentials
	}

	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	if !hasPermission(client, required) {
		return client, errPermissionDenied
	}
	return client, nil
}

func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		switch strings.TrimSpace(p) {
		case required, PermAdmin:
			return true
		}
	}
	return false
}

// rateLimiter hands out one token bucket per client key.
type rateLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{rps: rate.Limit(cfg.RPS), burst: burst}
}

func (l *rateLimiter) enabled() bool {
	return l.rps > 0
}

func (l *rateLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

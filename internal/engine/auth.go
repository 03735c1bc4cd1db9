package engine

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenSkew bounds the "iat" claim's acceptable drift, per spec section
// 4.6: "a short-lived bearer token derived by HMAC over a claim set (iat
// within a bounded skew)".
const tokenSkew = 5 * time.Second

// claims is the minimal claim set the Engine API's JWT auth scheme
// requires: a single "iat" field, HMAC-signed with the shared secret.
type claims struct {
	IssuedAt int64 `json:"iat"`
}

func (c claims) Valid() error { return nil }

func mintToken(secret []byte) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{IssuedAt: time.Now().Unix()})
	return tok.SignedString(secret)
}

// authTransport attaches a bearer token to every request, minting a new
// one only once the cached token is tokenSkew old (spec section 4.6: "the client regenerates
// tokens per request or caches them within the skew window").
type authTransport struct {
	underlying http.RoundTripper
	secret     []byte

	mu          sync.Mutex
	cachedToken string
	mintedAt    time.Time
}

func newAuthTransport(underlying http.RoundTripper, secret []byte) *authTransport {
	if underlying == nil {
		underlying = http.DefaultTransport
	}
	return &authTransport{underlying: underlying, secret: secret}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	if time.Since(t.mintedAt) >= tokenSkew || t.cachedToken == "" {
		token, err := mintToken(t.secret)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.cachedToken = token
		t.mintedAt = time.Now()
	}
	token := t.cachedToken
	t.mu.Unlock()

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.underlying.RoundTrip(req)
}

// Package token implements compact signed session tokens in the JWT wire
// format (header.payload.signature, base64url segments, HMAC-SHA256) without
// a JWT library. Tokens are stateless: there is no revocation, a token dies
// when its exp passes.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalidToken is returned for every verification failure: wrong segment
// count, signature mismatch, undecodable payload, or expiry. Callers get a
// single opaque reason on purpose — the gate answers 401 either way.
var ErrInvalidToken = errors.New("invalid or expired token")

// DefaultTTL is the token lifetime used when the service is configured with
// a zero TTL.
const DefaultTTL = 24 * time.Hour

// Identity is the user record embedded in every token payload.
type Identity struct {
	UserID      int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"name"`
}

// Claims is the full token payload: the identity plus the standard
// iat/exp timestamps (unix seconds).
type Claims struct {
	Identity
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

// header is fixed for every token this service issues.
type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Service issues and verifies tokens signed with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token Service. A zero ttl falls back to DefaultTTL.
func NewService(secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// encoding is base64url without padding, the only alphabet a conformant JWT
// consumer accepts.
var encoding = base64.RawURLEncoding

// Issue builds a signed token for the given identity. iat is set to the
// current time and exp to iat plus the configured TTL; any values already
// present on the identity timestamps are ignored.
func (s *Service) Issue(id Identity) (string, error) {
	headerJSON, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", errors.Wrap(err, "marshal header")
	}

	now := s.now().Unix()
	payloadJSON, err := json.Marshal(Claims{
		Identity:  id,
		IssuedAt:  now,
		ExpiresAt: now + int64(s.ttl/time.Second),
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal claims")
	}

	h := encoding.EncodeToString(headerJSON)
	p := encoding.EncodeToString(payloadJSON)

	return h + "." + p + "." + s.sign(h, p), nil
}

// Verify checks the token's structure, signature, and expiry, and returns
// the decoded claims. Every failure shape maps to ErrInvalidToken.
func (s *Service) Verify(tok string) (Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	// Recompute the signature over the received segments and compare in
	// constant time. The segments are compared as received: any re-encoding
	// would accept tokens a conformant verifier rejects.
	if !hmac.Equal([]byte(s.sign(parts[0], parts[1])), []byte(parts[2])) {
		return Claims{}, ErrInvalidToken
	}

	payloadJSON, err := encoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}

	if claims.ExpiresAt != 0 && claims.ExpiresAt <= s.now().Unix() {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// sign computes the base64url-encoded HMAC-SHA256 signature over
// "<header>.<payload>".
func (s *Service) sign(headerSeg, payloadSeg string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(headerSeg))
	mac.Write([]byte{'.'})
	mac.Write([]byte(payloadSeg))
	return encoding.EncodeToString(mac.Sum(nil))
}

package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingToken = errors.New("missing CSRF token")
	ErrInvalidToken = errors.New("invalid CSRF token")
	ErrTokenExpired = errors.New("CSRF token expired")
)

// HeaderName carries the token on event requests.
const HeaderName = "X-CSRF-Token"

const nonceSize = 18

// CSRFConfig configures token signing. Zero values pick a random secret
// and a 24h lifetime.
type CSRFConfig struct {
	Secret []byte
	MaxAge time.Duration
}

// CSRFProtection issues tokens of the form nonce.issued.mac, where the mac
// also covers the live session id the token was issued for.
type CSRFProtection struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewCSRFProtection(cfg CSRFConfig) *CSRFProtection {
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &CSRFProtection{secret: secret, maxAge: maxAge, now: time.Now}
}

// GenerateToken returns a token valid only for sessionID.
func (c *CSRFProtection) GenerateToken(sessionID string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(nonce) + "." + strconv.FormatInt(c.now().Unix(), 36)
	return body + "." + c.mac(body, sessionID), nil
}

// ValidateToken checks the signature, the session binding and the age.
func (c *CSRFProtection) ValidateToken(token, sessionID string) error {
	if token == "" {
		return ErrMissingToken
	}
	i := strings.LastIndexByte(token, '.')
	if i < 0 {
		return ErrInvalidToken
	}
	body, sig := token[:i], token[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.mac(body, sessionID))) {
		return ErrInvalidToken
	}

	_, issued, ok := strings.Cut(body, ".")
	if !ok {
		return ErrInvalidToken
	}
	unix, err := strconv.ParseInt(issued, 36, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if c.now().Sub(time.Unix(unix, 0)) > c.maxAge {
		return ErrTokenExpired
	}
	return nil
}

func (c *CSRFProtection) mac(body, sessionID string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(body))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

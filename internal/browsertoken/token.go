// Package browsertoken issues the signed cookie that identifies one browser.
// The browser id scopes the liked-set, so a like counts at most once per
// browser; clearing cookies yields a new browser, which is accepted.
package browsertoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"forbias/internal/util"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the issuer claim stamped on browser tokens.
	DefaultIssuer = "forbias-web"
	// DefaultTTL is how long a browser token stays valid.
	DefaultTTL = 365 * 24 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 30 * time.Second
)

var (
	// ErrInvalidToken reports a malformed, forged or expired browser token.
	ErrInvalidToken = errors.New("invalid browser token")
)

// Options configures an Issuer.
type Options struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
	Now    func() time.Time
	NewID  func() string
}

// Issuer signs and verifies HS256 browser tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
	newID  func() string
}

// NewIssuer validates options and fills defaults.
func NewIssuer(opts Options) (*Issuer, error) {
	secret := strings.TrimSpace(opts.Secret)
	if len(secret) < 16 {
		return nil, errors.New("browser token secret must be at least 16 characters")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = util.NewID
	}
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		leeway: leeway,
		now:    now,
		newID:  newID,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a new browser id and its signed token.
func (i *Issuer) Issue() (browserID, token string, err error) {
	browserID = i.newID()
	now := i.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   browserID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign browser token: %w", err)
	}
	return browserID, token, nil
}

// Verify checks the signature, issuer and expiry and returns the browser id.
func (i *Issuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, mis-signed, from the
	// wrong issuer/audience, or expired. Callers get no finer distinction.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims holds the JWT claims for both access and refresh tokens.
// Company is set on access tokens only, and only when a company was selected.
type Claims struct {
	jwt.RegisteredClaims
	Company string `json:"company,omitempty"`
}

// TokenConfig carries the signing key and claim parameters for the token
// provider. Constructed once from app config and passed in explicitly; no
// ambient lookups happen during validation.
type TokenConfig struct {
	Secret       string
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	RotateWithin time.Duration
}

// TokenPair is one issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Outcome is the three-way result of validating an access token.
type Outcome int

const (
	// OutcomeInvalid covers every failure: malformed, bad signature, wrong
	// issuer or audience, expired.
	OutcomeInvalid Outcome = iota
	// OutcomeValid means the token passed all checks with comfortable lifetime left.
	OutcomeValid
	// OutcomeValidAndRotated means the token passed but was close to expiry,
	// and a replacement pair was minted. Callers must apply Validation.Rotated.
	OutcomeValidAndRotated
)

// Validation is the result of Validate. Username and Company are set for
// valid outcomes; Rotated is non-nil exactly when Outcome is OutcomeValidAndRotated.
type Validation struct {
	Outcome  Outcome
	Username string
	Company  string
	Rotated  *TokenPair
}

// TokenProvider issues and validates HMAC-SHA256 signed access and refresh tokens
// sharing one symmetric key.
type TokenProvider struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenProvider returns a TokenProvider for the given config.
// Zero AccessTTL, RefreshTTL, or RotateWithin fall back to 15m, 24h, and 5m.
func NewTokenProvider(cfg TokenConfig) *TokenProvider {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.RotateWithin <= 0 {
		cfg.RotateWithin = 5 * time.Minute
	}
	return &TokenProvider{cfg: cfg, now: time.Now}
}

// Issue mints an access/refresh token pair for username. company, when non-empty,
// is carried as a custom claim on the access token only. Each token gets a fresh
// random jti. Issue cannot fail for a provider built with a non-empty secret.
func (p *TokenProvider) Issue(username, company string) (TokenPair, error) {
	// exp claims carry whole seconds; truncate so the pair's timestamps are
	// exactly what a later decode of the token will report.
	now := p.now().UTC().Truncate(time.Second)
	accessExp := now.Add(p.cfg.AccessTTL)
	refreshExp := now.Add(p.cfg.RefreshTTL)

	access, err := p.sign(Claims{
		RegisteredClaims: p.registered(username, now, accessExp),
		Company:          company,
	})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := p.sign(Claims{
		RegisteredClaims: p.registered(username, now, refreshExp),
	})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (p *TokenProvider) registered(username string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   username,
		Issuer:    p.cfg.Issuer,
		Audience:  jwt.ClaimStrings{p.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (p *TokenProvider) sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(p.cfg.Secret))
}

// Validate verifies the access token's signature, issuer, audience, lifetime,
// and that its subject matches claimedUsername. On success with less than
// RotateWithin left before expiry, a replacement pair is minted and returned
// in Validation.Rotated so the caller rewrites the client's cookies.
func (p *TokenProvider) Validate(tokenString, claimedUsername string) Validation {
	claims, err := p.parse(tokenString, true)
	if err != nil {
		return Validation{Outcome: OutcomeInvalid}
	}
	if claimedUsername != "" && claims.Subject != claimedUsername {
		return Validation{Outcome: OutcomeInvalid}
	}

	v := Validation{Outcome: OutcomeValid, Username: claims.Subject, Company: claims.Company}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Sub(p.now()) < p.cfg.RotateWithin {
		pair, err := p.Issue(claims.Subject, claims.Company)
		if err != nil {
			// Signing cannot realistically fail here; treat the token as
			// still valid rather than bouncing the request.
			return v
		}
		v.Outcome = OutcomeValidAndRotated
		v.Rotated = &pair
	}
	return v
}

// ValidateSignatureOnly verifies the refresh token's signature, issuer, and
// audience but not its lifetime. Refresh tokens reaching this path are about
// to be replaced, so an elapsed lifetime is irrelevant. Returns the subject.
func (p *TokenProvider) ValidateSignatureOnly(tokenString string) (string, error) {
	claims, err := p.parse(tokenString, false)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// RefreshExpiry decodes the token without verifying its signature and returns
// the embedded expiry. Used for session bookkeeping only, never for admission;
// callers fall back to now+RefreshTTL on error.
func (p *TokenProvider) RefreshExpiry(tokenString string) (time.Time, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

// DefaultRefreshExpiry returns now+RefreshTTL, the fallback when a refresh
// token's expiry cannot be decoded.
func (p *TokenProvider) DefaultRefreshExpiry() time.Time {
	return p.now().UTC().Add(p.cfg.RefreshTTL)
}

func (p *TokenProvider) parse(tokenString string, checkLifetime bool) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(p.now)}
	if !checkLifetime {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(p.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.cfg.Issuer {
		return nil, ErrInvalidToken
	}
	// The issuer value itself counts as a valid audience; the login app's
	// older builds minted tokens with aud set to the issuer.
	audOk := false
	for _, a := range claims.Audience {
		if a == p.cfg.Audience || a == p.cfg.Issuer {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

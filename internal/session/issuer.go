package session

import (
	"errors"
	"fmt"
	"time"

	"navconsole/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrExpired   = errors.New("session: credential expired")
	ErrMalformed = errors.New("session: credential malformed")
	ErrInvalid   = errors.New("session: credential invalid")
	ErrRevoked   = errors.New("session: credential revoked")
)

type claims struct {
	Account     string          `json:"account"`
	Roles       []RoleRef       `json:"roles"`
	Permissions []PermissionRef `json:"permissions"`
	jwt.RegisteredClaims
}

// Options configures an Issuer.
type Options struct {
	Secret        []byte
	Issuer        string
	TTL           time.Duration
	RefreshWindow time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Issuer signs and verifies HS256 session credentials.
type Issuer struct {
	secret        []byte
	issuer        string
	ttl           time.Duration
	refreshWindow time.Duration
	now           func() time.Time
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session: empty signing secret")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:        opts.Secret,
		issuer:        opts.Issuer,
		ttl:           opts.TTL,
		refreshWindow: opts.RefreshWindow,
		now:           now,
	}, nil
}

// TTL is the lifetime of every issued credential.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue flattens the user's loaded roles and signs a fresh credential.
func (i *Issuer) Issue(user *model.User) (string, *Credential, error) {
	roles, perms := Flatten(user.Roles)
	return i.sign(&Credential{
		UserID:      user.ID,
		Account:     user.Account,
		Roles:       roles,
		Permissions: perms,
	})
}

// Refresh re-signs cred with a new id and expiry. The snapshot is carried over as is.
func (i *Issuer) Refresh(cred *Credential) (string, *Credential, error) {
	return i.sign(&Credential{
		UserID:      cred.UserID,
		Account:     cred.Account,
		Roles:       cred.Roles,
		Permissions: cred.Permissions,
	})
}

// NeedsRefresh reports whether cred is inside the sliding refresh window.
func (i *Issuer) NeedsRefresh(cred *Credential) bool {
	if i.refreshWindow <= 0 {
		return false
	}
	return cred.ExpiresAt.Sub(i.now()) < i.refreshWindow
}

func (i *Issuer) sign(cred *Credential) (string, *Credential, error) {
	now := i.now()
	c := claims{
		Account:     cred.Account,
		Roles:       cred.Roles,
		Permissions: cred.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   cred.UserID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("session: sign credential: %w", err)
	}

	out := *cred
	out.TokenID = c.ID
	out.IssuedAt = c.IssuedAt.Time
	out.ExpiresAt = c.ExpiresAt.Time
	return token, &out, nil
}

// Verify checks signature, issuer and expiry before trusting any claim.
func (i *Issuer) Verify(token string) (*Credential, error) {
	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	switch {
	case err == nil && parsed.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	default:
		return nil, ErrInvalid
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil || c.ID == "" || c.IssuedAt == nil {
		return nil, ErrMalformed
	}

	return &Credential{
		UserID:      userID,
		Account:     c.Account,
		Roles:       c.Roles,
		Permissions: c.Permissions,
		TokenID:     c.ID,
		IssuedAt:    c.IssuedAt.Time,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

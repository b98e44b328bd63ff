package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Authenticator verifies a presented token and consults the deny list.
type Authenticator struct {
	issuer *Issuer
	deny   DenyList
}

func NewAuthenticator(issuer *Issuer, deny DenyList) *Authenticator {
	return &Authenticator{issuer: issuer, deny: deny}
}

func (a *Authenticator) Issuer() *Issuer {
	return a.issuer
}

// Authenticate returns the credential behind token, or ErrExpired, ErrMalformed,
// ErrInvalid or ErrRevoked. Other errors come from the deny list backend.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Credential, error) {
	cred, err := a.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	if a.deny == nil {
		return cred, nil
	}

	revoked, err := a.deny.IsRevoked(ctx, cred.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}

	nbf, ok, err := a.deny.NotBefore(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	if ok && cred.IssuedAt.Before(nbf) {
		return nil, ErrRevoked
	}
	return cred, nil
}

// Logout revokes the credential's token id for the rest of its lifetime.
func (a *Authenticator) Logout(ctx context.Context, cred *Credential) error {
	if a.deny == nil {
		return nil
	}
	if err := a.deny.Revoke(ctx, cred.TokenID, cred.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// RevokeUsers invalidates every outstanding credential of the given users. Markers have
// one second resolution, so a credential minted in the same second still passes.
func (a *Authenticator) RevokeUsers(ctx context.Context, userIDs ...uuid.UUID) error {
	if a.deny == nil {
		return nil
	}
	at := a.issuer.now()
	for _, id := range userIDs {
		if err := a.deny.RevokeUser(ctx, id, at); err != nil {
			return err
		}
	}
	return nil
}

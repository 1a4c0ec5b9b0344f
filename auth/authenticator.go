package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/store"
)

// CredentialLookup is the read side of the credential store used to resolve token subjects.
type CredentialLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticator turns an Authorization header value into a caller identity.
type Authenticator struct {
	tokens *TokenService
	users  CredentialLookup
}

// NewAuthenticator wires the token service to the credential store.
func NewAuthenticator(tokens *TokenService, users CredentialLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves header to an identity. It returns ErrNoCredentials when no
// bearer token is present, an *AuthError when the token or account is rejected, and
// any other error when the credential store itself failed.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return Identity{}, ErrNoCredentials
	}

	subject, err := a.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	user, err := a.users.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, newAuthError(KindUnknown, fmt.Errorf("subject %q", subject))
		}
		return Identity{}, fmt.Errorf("resolve subject: %w", err)
	}
	if !user.Enabled {
		return Identity{}, newAuthError(KindDisabled, fmt.Errorf("subject %q", subject))
	}

	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.RoleNames(),
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
// An empty token after the prefix is still reported so it can be rejected as malformed.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

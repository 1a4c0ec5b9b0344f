package auth

import "errors"

// Kind classifies why a caller could not be authenticated.
type Kind int

const (
	// KindMalformed covers bad structure, bad signature and unexpected algorithms.
	KindMalformed Kind = iota + 1
	// KindExpired means the token was presented at or after its expiry.
	KindExpired
	// KindUnknown means the subject does not resolve to an account.
	KindUnknown
	// KindDisabled means the account exists but is switched off.
	KindDisabled
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	case KindUnknown:
		return "unknown"
	case KindDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

// AuthError is returned for every rejected credential. It always maps to an
// unauthorized outcome and is never retried.
type AuthError struct {
	Kind Kind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "auth: " + e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind, so errors.Is(err, ErrExpiredToken) works on wrapped values.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMalformedToken = &AuthError{Kind: KindMalformed}
	ErrExpiredToken   = &AuthError{Kind: KindExpired}
	ErrUnknownSubject = &AuthError{Kind: KindUnknown}
	ErrDisabled       = &AuthError{Kind: KindDisabled}

	// ErrNoCredentials means no bearer token was presented. It is not an
	// AuthError: the route policy decides whether anonymous access is fine.
	ErrNoCredentials = errors.New("auth: no bearer credentials")
	// ErrForbidden means the identity lacks a role the route requires.
	ErrForbidden = errors.New("auth: insufficient role")
)

func newAuthError(kind Kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf extracts the AuthError kind from err, or 0 when err is not an AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

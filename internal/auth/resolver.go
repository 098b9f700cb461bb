//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=../mocks/mock_resolver.go -package=mocks

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the profile an identity provider vouches for
type Identity struct {
	Subject   string
	Username  string
	Email     string
	AvatarURL string
}

// Resolver turns a client credential into a verified identity
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

// DisplayName returns the username, or the email local part, or a name derived from the subject
func (i *Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Username); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	suffix := i.Subject
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("user_%s", suffix)
}

// BearerToken strips an optional "Bearer " prefix from a credential
func BearerToken(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		return strings.TrimSpace(credential[7:])
	}
	return credential
}

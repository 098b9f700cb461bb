package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload accepted by JWTResolver
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens signed with a shared secret
type JWTResolver struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTResolver creates a resolver. An empty issuer disables the issuer check.
func NewJWTResolver(secret, issuer string) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTResolver{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Resolve validates the token signature and expiry and returns the identity it carries
func (r *JWTResolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokenString := BearerToken(credential)
	if tokenString == "" {
		return nil, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := r.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidCredential
	}

	return &Identity{
		Subject:   claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
	}, nil
}

// Issue signs a token for the identity, valid for ttl
func (r *JWTResolver) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: id.Username,
		Email:    id.Email,
		Picture:  id.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

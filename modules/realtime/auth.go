package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	dirdomain "github.com/example/qa-realtime/domain/directory"
	"github.com/golang-jwt/jwt/v5"
)

// Handshake rejection reasons. Their messages are sent to the client verbatim.
var (
	ErrTokenRequired = errors.New("Authentication token required")
	ErrInvalidUser   = errors.New("Invalid user")
	ErrAuthFailed    = errors.New("Authentication failed")
)

var (
	// ErrInvalidToken is returned when the token is malformed or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the authenticated owner of a connection.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// TokenVerifier validates a bearer credential and returns the user ID it was issued to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Claims are the token claims accepted by JWTVerifier. The user is taken from
// user_id, falling back to sub.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed JWTs issued by the main application.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a JWTVerifier. An empty issuer accepts any issuer.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify validates the token and returns its user ID.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var opts []jwt.ParserOption
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Sign issues a token for userID valid for ttl. It is used by tests and local tooling.
func (v *JWTVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Authenticator resolves a handshake credential into an Identity.
type Authenticator struct {
	verifier  TokenVerifier
	directory UserDirectory
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(verifier TokenVerifier, directory UserDirectory) *Authenticator {
	return &Authenticator{verifier: verifier, directory: directory}
}

// Authenticate verifies the token and checks that its user exists and is active.
// Errors are ErrTokenRequired, ErrInvalidUser or ErrAuthFailed.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrTokenRequired
	}

	userID, err := a.verifier.Verify(token)
	if err != nil {
		return Identity{}, ErrAuthFailed
	}

	profile, err := a.directory.LookupUser(ctx, userID)
	if err != nil {
		if errors.Is(err, dirdomain.ErrUserNotFound) {
			return Identity{}, ErrInvalidUser
		}
		return Identity{}, ErrAuthFailed
	}
	if !profile.Active {
		return Identity{}, ErrInvalidUser
	}

	return Identity{UserID: userID, Role: profile.Role}, nil
}

// TokenFromRequest extracts the credential from an "auth.token"-style value or
// an Authorization header. The explicit token wins.
func TokenFromRequest(authToken, authorization string) string {
	if t := strings.TrimSpace(authToken); t != "" {
		return t
	}
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	}
	return ""
}

package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

const tokenIssuer = "folio"

// AuthService reads viewer identity from bearer tokens issued by the
// platform's session service. It never rejects a request on its own; callers
// treat a failed parse as an anonymous viewer.
type AuthService struct {
	logger    *logrus.Logger
	jwtSecret []byte
}

func NewAuthService(cfg *config.Config, logger *logrus.Logger) *AuthService {
	return &AuthService{
		logger:    logger,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
	}
}

// Enabled reports whether a signing secret is configured.
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// IssueToken signs a viewer token. Used by tooling and tests; production
// tokens come from the session service with the same secret.
func (s *AuthService) IssueToken(viewerID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.ViewerClaims{
		ViewerID: viewerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(viewerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ViewerFromToken returns the viewer id carried by a valid token.
func (s *AuthService) ViewerFromToken(tokenString string) (int64, error) {
	if !s.Enabled() {
		return 0, fmt.Errorf("%w: token verification disabled", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.ViewerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.ViewerClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if claims.ViewerID <= 0 {
		return 0, fmt.Errorf("%w: missing viewer id", ErrInvalidToken)
	}
	return claims.ViewerID, nil
}

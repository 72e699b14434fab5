package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// ViewerClaims is issued by the platform's session service. The
// recommendation API only reads it to identify the viewer.
type ViewerClaims struct {
	ViewerID int64  `json:"viewer_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// principalKey is where the resolved principal lives in the gin context.
const principalKey = "principal"

// Claims is the admin token payload. Token issuance and RBAC mapping happen
// in the identity service; the core only verifies and extracts.
type Claims struct {
	Role   string `json:"role"`
	Office string `json:"office"`
	jwt.RegisteredClaims
}

// Auth verifies the bearer token and installs the Principal.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "authentication",
				"message": "Authentication required.",
			})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "authentication",
				"message": "Invalid or expired token.",
			})
			return
		}

		office, ok := models.ParseOffice(claims.Office)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "authorization",
				"message": "Token is not bound to a known office.",
			})
			return
		}

		c.Set(principalKey, models.Principal{
			UserID: claims.Subject,
			Role:   claims.Role,
			Office: office,
		})
		c.Next()
	}
}

// PrincipalFrom extracts the authenticated principal installed by Auth.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

package public

import (
    "crypto/rsa"
    "encoding/base64"
    "fmt"
    "net/http"
    "strings"

    "github.com/gin-gonic/gin"
    "github.com/golang-jwt/jwt/v5"
)

// SecurityHandler checks RS256 bearer tokens against the public key of
// the auth service.
type SecurityHandler struct {
    publicKey *rsa.PublicKey
}

// NewSecurityHandler takes the PEM encoded public key, base64 encoded.
func NewSecurityHandler(base64PubKey string) (*SecurityHandler, error) {
    pemKey, err := base64.StdEncoding.DecodeString(base64PubKey)
    if err != nil {
        return nil, fmt.Errorf("failed decoding base64 public key: %w", err)
    }
    publicKey, err := jwt.ParseRSAPublicKeyFromPEM(pemKey)
    if err != nil {
        return nil, fmt.Errorf("failed parsing public key: %w", err)
    }
    return &SecurityHandler{publicKey: publicKey}, nil
}

func (s *SecurityHandler) Middleware() gin.HandlerFunc {
    return func(c *gin.Context) {
        authorization := c.GetHeader("Authorization")
        tokenString, found := strings.CutPrefix(authorization, "Bearer ")
        if !found || tokenString == "" {
            c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
            return
        }

        _, err := jwt.Parse(
            tokenString,
            func(token *jwt.Token) (any, error) {
                return s.publicKey, nil
            },
            jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
            jwt.WithExpirationRequired(),
        )
        if err != nil {
            c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
            return
        }

        c.Next()
    }
}

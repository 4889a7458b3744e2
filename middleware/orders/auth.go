package orders

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"orders-gateway/middleware/orders/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator valida o bearer token já extraído do header Authorization.
// Falhas devem ser domain.Error: CodeUnauthorized vira 401 e qualquer outro
// erro vira 403.
type Authenticator interface {
	Authenticate(token, tenantID string) error
}

// AuthenticatorFunc adapta uma função comum.
type AuthenticatorFunc func(token, tenantID string) error

func (f AuthenticatorFunc) Authenticate(token, tenantID string) error { return f(token, tenantID) }

// AcceptAnyBearer exige apenas a presença do bearer (AUTH_MODE=none).
func AcceptAnyBearer() Authenticator {
	return AuthenticatorFunc(func(string, string) error { return nil })
}

// APIKeyAuth compara o bearer com uma chave estática (AUTH_MODE=apikey).
func APIKeyAuth(key string) Authenticator {
	want := []byte(key)
	return AuthenticatorFunc(func(token, _ string) error {
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			return domain.Wrap(domain.CodeForbidden, "Invalid API key.", nil)
		}
		return nil
	})
}

// JWTAuth valida um JWT HMAC cuja claim "tenant" deve ser igual ao X-Tenant-Id
// (AUTH_MODE=jwt).
func JWTAuth(secret []byte) Authenticator {
	return AuthenticatorFunc(func(token, tenantID string) error {
		parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !parsed.Valid {
			return domain.Wrap(domain.CodeForbidden, "Invalid token.", err)
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return domain.Wrap(domain.CodeForbidden, "Invalid token.", nil)
		}
		tenant, _ := claims["tenant"].(string)
		if tenant == "" || tenant != tenantID {
			return domain.Wrap(domain.CodeForbidden, "Token is not valid for this tenant.", nil)
		}
		return nil
	})
}

// bearerToken extrai o token de "Authorization: Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

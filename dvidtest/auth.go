package dvidtest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"
)

// GenerateToken returns a JWT for the user signed with the server's secret.
func (s *Server) GenerateToken(user string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("server has no secret key for JWT signing")
	}
	return GenerateToken(s.secret, user)
}

// GenerateToken returns a JWT with a "user" claim signed using HS256 and the secret.
func GenerateToken(secret []byte, user string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user": user})
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized is middleware that validates a JWT and sets the c.Env["user"] field
// to the authenticated user.
func (s *Server) isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			h.ServeHTTP(w, r)
			return
		}
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			errorResponse(w, r, http.StatusUnauthorized, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 {
			errorResponse(w, r, http.StatusUnauthorized, "bearer not in proper format")
			return
		}
		reqToken = strings.TrimSpace(splitToken[1])
		token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil {
			errorResponse(w, r, http.StatusUnauthorized, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			errorResponse(w, r, http.StatusUnauthorized, "failed authorization")
			return
		}
		user, ok := claims["user"].(string)
		if !ok || user == "" {
			errorResponse(w, r, http.StatusUnauthorized, "user %v is not a simple string", claims["user"])
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

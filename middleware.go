package main

import (
	"strings"

	"github.com/gin-gonic/gin"

	"finapi/pkg/apperr"
	"finapi/pkg/auth"
)

const identityKey = "identity"

// authMiddleware resolves the Bearer token to an identity. Every failure is
// reported with the same 401 envelope.
func (s *server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			s.fail(c, apperr.Unauthenticated("missing or invalid Authorization header"))
			return
		}
		id, err := s.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// caller returns the identity set by authMiddleware.
func caller(c *gin.Context) *auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(*auth.Identity)
	if id == nil {
		return &auth.Identity{}
	}
	return id
}

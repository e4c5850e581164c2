package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orderservice/internal/domain"
)

const requesterKey = "requester"

// requireAuth trusts the identity headers set by the upstream auth
// gateway (credential verification is an external collaborator) and
// attaches the requester to the request context.
func (s *Server) requireAuth(c *gin.Context) {
	id := c.GetHeader("X-User-Id")
	role := domain.Role(c.GetHeader("X-User-Role"))
	if id == "" || !role.Valid() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   errorBody{Code: domain.CodeUnauthorized, Message: "Missing or invalid credentials"},
		})
		return
	}
	c.Set(requesterKey, domain.Requester{ID: id, Role: role})
	c.Next()
}

// requireRole restricts a route to the given roles.
func (s *Server) requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := getRequester(c)
		for _, role := range roles {
			if requester.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   errorBody{Code: domain.CodeForbidden, Message: "Not allowed"},
		})
	}
}

func getRequester(c *gin.Context) domain.Requester {
	requester, _ := c.MustGet(requesterKey).(domain.Requester)
	return requester
}

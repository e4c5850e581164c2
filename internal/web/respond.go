package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderservice/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendSuccess writes the standard success envelope.
func sendSuccess(c *gin.Context, status int, data any, message string) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

// sendError maps a service error onto the envelope. Typed domain errors
// keep their status and code; anything else is an opaque 500.
func (s *Server) sendError(c *gin.Context, err error) {
	if de, ok := domain.AsError(err); ok {
		c.JSON(de.HTTPStatus, gin.H{
			"success": false,
			"error":   errorBody{Code: de.Code, Message: de.Message},
		})
		return
	}

	s.logger.Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   errorBody{Code: domain.CodeInternal, Message: "Internal server error"},
	})
}

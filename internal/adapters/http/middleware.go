package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"huddle/internal/auth"
	"huddle/internal/domain"
	apperrors "huddle/pkg/errors"
)

const principalKey = "principal"

func authMiddleware(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		p, err := authSvc.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principalOf(c *gin.Context) *auth.Principal {
	p, _ := c.Get(principalKey)
	return p.(*auth.Principal)
}

func channelType(s string) domain.ChannelType {
	if s == string(domain.ChannelPrivate) {
		return domain.ChannelPrivate
	}
	return domain.ChannelPublic
}

func statusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeAlreadyExists:
		return http.StatusConflict
	case apperrors.CodePermissionDenied:
		return http.StatusForbidden
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"huddle/internal/adapters/chat"
	"huddle/internal/auth"
	"huddle/internal/config"
	apperrors "huddle/pkg/errors"
)

func SetupRouter(ctx context.Context, cfg *config.Config, authSvc *auth.Service, ctl *chat.ChatWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.POST("/register", func(c *gin.Context) {
		var req struct {
			Nickname  string `json:"nickName"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
			Email     string `json:"email"`
			Password  string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		user, err := authSvc.Register(c.Request.Context(), auth.RegisterCommand{
			Nickname:  req.Nickname,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
		})
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": apperrors.MessageOf(err)})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": user.ID, "nickName": user.Nickname})
	})

	api.POST("/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		token, user, err := authSvc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": apperrors.MessageOf(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "nickName": user.Nickname})
	})

	// GET /api/channels — snapshots of the caller's channels
	api.GET("/channels", authMiddleware(authSvc), func(c *gin.Context) {
		p := principalOf(c)
		ctl.Reaper.Sweep(c.Request.Context())
		channels, err := ctl.Moderation.List(c.Request.Context(), p)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": apperrors.MessageOf(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"channels": channels})
	})

	// POST /api/channels — create a channel
	api.POST("/channels", authMiddleware(authSvc), func(c *gin.Context) {
		p := principalOf(c)
		var req struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Description string `json:"description"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		snap, err := ctl.Moderation.Create(c.Request.Context(), p, req.Name, channelType(req.Type), req.Description)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": apperrors.MessageOf(err)})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"channel": snap})
	})

	// The persistent chat connection.
	api.GET("/ws/chat", func(c *gin.Context) {
		ctl.HandleChat(ctx, c)
	})

	return r
}

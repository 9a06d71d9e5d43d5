package http

import (
	"context"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every client with a long-lived token kept in the
// signed session cookie. It correlates a client's sockets in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			sess.Set("ct", token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ConsultSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	h := &handlers{orch: o}
	api := r.Group("/api")

	api.GET("/health", h.health)
	api.GET("/channels", h.listChannels)
	api.POST("/sessions/:displayId/tokens", h.issueTokens)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})
	api.GET("/ws/media", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws media endpoint hit")
		ctl.HandleMedia(ctx, c)
	})

	return r
}

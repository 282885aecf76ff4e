package http

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/adapters/signal"
	"github.com/confab-live/confab/internal/app"
	"github.com/confab-live/confab/internal/auth"
	"github.com/confab-live/confab/internal/config"
)

// SetupRouter wires the HTTP surface: static UI, account endpoints, the
// REST meeting route, and the WebSocket signaling endpoint behind the
// credential gate.
func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, accounts *sql.DB) (*gin.Engine, error) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConfabSession", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	iceServers, err := cfg.ICEServers()
	if err != nil {
		return nil, err
	}

	issuer := auth.NewTokenIssuer(cfg.Secret)
	h := &handlers{cfg: cfg, issuer: issuer, accounts: accounts}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("require_auth", cfg.RequireAuth).Msg("router setup")

	api := r.Group("/api")
	api.POST("/register", h.register)
	api.POST("/login", h.login)

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	api.POST("/meetings", h.gate(), h.createMeeting(orch))

	api.GET("/ws/signal", h.gate(), func(c *gin.Context) {
		ctl := signal.NewSignalWSController(orch, cfg)
		ctl.HandleSignal(ctx, c)
	})

	return r, nil
}

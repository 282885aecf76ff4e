package http

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/app"
	"github.com/confab-live/confab/internal/auth"
	"github.com/confab-live/confab/internal/config"
	"github.com/confab-live/confab/internal/dal"
	"github.com/confab-live/confab/internal/domain"
)

const sessionAccountKey = "account_id"

type handlers struct {
	cfg      *config.Config
	issuer   auth.TokenIssuer
	accounts *sql.DB
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration payload"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	id, err := dal.CreateAccount(h.accounts, req.Email, req.Name, hashed)
	if err != nil {
		if errors.Is(err, dal.ErrAccountExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email or name already registered"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("create account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "email": req.Email, "name": req.Name})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload"})
		return
	}

	account, err := dal.GetAccountByEmail(h.accounts, req.Email)
	if err != nil || auth.CompareHashAndPassword(account.Password, req.Password) != nil {
		// Same response for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issuer.Sign(account.ID, h.cfg.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionAccountKey, account.ID)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": account.ID, "email": account.Email, "name": account.Name},
	})
}

// gate resolves the caller's account from a bearer token (query parameter
// or Authorization header) or the login session. With require_auth on,
// unauthenticated requests are refused before any signaling state exists.
func (h *handlers) gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := ""

		token := c.Query("token")
		if token == "" {
			if header := c.GetHeader("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
				token = header[7:]
			}
		}
		if token != "" {
			id, err := h.issuer.Verify(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			accountID = id
		} else if v := sessions.Default(c).Get(sessionAccountKey); v != nil {
			if id, ok := v.(string); ok {
				accountID = id
			}
		}

		if accountID == "" && h.cfg.RequireAuth {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set("account_id", accountID)
		c.Next()
	}
}

// createMeeting is the REST variant of meeting creation: the server picks
// the id, retrying on the astronomically unlikely uuid collision.
func (h *handlers) createMeeting(orch *app.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting payload"})
			return
		}

		const maxRetries = 3
		for i := 0; i < maxRetries; i++ {
			meeting, err := orch.Meetings.Create(domain.MeetingID(uuid.NewString()), req.Title)
			if err == nil {
				c.JSON(http.StatusCreated, meeting)
				return
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not allocate meeting id"})
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/audit"
	"regdesk/internal/auth"
	"regdesk/internal/config"
	"regdesk/internal/httpmiddleware"
	"regdesk/internal/participant"
	"regdesk/internal/queue"
	"regdesk/internal/ratelimit"
	"regdesk/internal/registration"
	"regdesk/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	if err := runHTTP(cfg, logger); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App, logger *zap.SugaredLogger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Warnw("db not reachable", "error", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var mailq queue.Queue
	if cfg.QueueBackend == "memory" {
		mailq = queue.NewInMemory(64)
	} else {
		mailq = queue.NewRedisQueue(redisClient.Client, "regdesk:mail")
	}

	recorder := audit.NewRecorder(audit.NewPostgresStore(db.Client), logger)

	limiter := ratelimit.New(
		ratelimit.NewRedisCounterStore(redisClient.Client),
		map[ratelimit.Op]ratelimit.Rule{
			ratelimit.OpRecoverEmail: {MaxPerDay: cfg.RecoverMaxPerDay, Cooldown: cfg.RecoverCooldown},
			ratelimit.OpCodeLookup:   {MaxPerDay: cfg.LookupMaxPerDay, Cooldown: cfg.LookupCooldown},
			ratelimit.OpSubmit:       {MaxPerDay: cfg.SubmitMaxPerDay, Cooldown: cfg.SubmitCooldown},
		},
		logger,
	)

	participants := participant.NewService(
		participant.NewPostgresStore(db.Client),
		recorder,
		logger,
		participant.WithCache(participant.NewCache(redisClient.Client)),
	)

	registrations := registration.NewService(
		registration.NewPostgresStore(db.Client),
		limiter,
		recorder,
		mailq,
		cfg.KeyDerivationSecret,
		logger,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Public registration surface. Per-operation admission control runs
	// inside the services; handlers just shape requests and responses.
	r.POST("/v1/surveys/:id/registrations", func(c *gin.Context) {
		var req struct {
			Name      string         `json:"name" binding:"required"`
			Email     string         `json:"email"`
			Phone     string         `json:"phone"`
			BirthDate string         `json:"birth_date"`
			Paid      bool           `json:"paid"`
			Form      map[string]any `json:"form"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := registrations.Submit(c.Request.Context(), c.Param("id"), c.ClientIP(), registration.SubmitInput{
			Name:      req.Name,
			Email:     req.Email,
			Phone:     req.Phone,
			BirthDate: req.BirthDate,
			Paid:      req.Paid,
			Form:      req.Form,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	r.POST("/v1/registrations/lookup", func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := registrations.LookupByCode(c.Request.Context(), req.Code, c.ClientIP())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	r.PUT("/v1/registrations/:code", func(c *gin.Context) {
		var req struct {
			Form map[string]any `json:"form" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := registrations.UpdateByCode(c.Request.Context(), c.Param("code"), c.ClientIP(), req.Form)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	r.POST("/v1/registrations/recover", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			SurveyID string `json:"survey_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := registrations.SendCodeByEmail(c.Request.Context(), req.Email, req.SurveyID, c.ClientIP()); err != nil {
			writeError(c, err)
			return
		}
		// Always the same body: the response must not reveal whether the
		// address is registered.
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/v1/staff/login", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var role string
		switch req.Password {
		case cfg.AdminPassword:
			role = auth.RoleAdmin
		case cfg.StaffPassword:
			role = auth.RoleStaff
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
			return
		}
		tokens, err := auth.Issue(req.Name, role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"role":          role,
		})
	})

	// Staff surface: check-in desk and audit log.
	staff := r.Group("/v1", auth.StaffAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	staff.POST("/checkin/scan", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := participants.Resolve(c.Request.Context(), req.Text)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"participant": p, "status": p.CurrentStatus()})
	})

	staff.POST("/participants/:id/toggle", func(c *gin.Context) {
		tr, err := participants.Toggle(c.Request.Context(), c.Param("id"), auth.ActorName(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tr)
	})

	staff.POST("/participants/:id/assign", func(c *gin.Context) {
		var req struct {
			Group *string `json:"group"`
			Room  *string `json:"room"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := participants.Assign(c.Request.Context(), c.Param("id"), req.Group, req.Room, auth.ActorName(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	staff.GET("/audit", func(c *gin.Context) {
		pageSize := 50
		if v := c.Query("page_size"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				pageSize = parsed
			}
		}
		page, err := recorder.ReadPage(c.Request.Context(), pageSize, c.Query("cursor"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})

	staff.DELETE("/audit", auth.RequireAdmin(), func(c *gin.Context) {
		deleted, err := recorder.ClearAll(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("server forced shutdown", "error", err)
	}

	logger.Info("server exited")
	return nil
}

// writeError maps the error taxonomy onto HTTP statuses in one place.
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case apperr.KindRateLimited:
		if wait := apperr.RetryAfter(err); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(wait))
			body["retry_after"] = wait
		}
		c.JSON(http.StatusTooManyRequests, body)
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

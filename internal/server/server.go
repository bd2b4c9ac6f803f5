// Package server exposes the admin HTTP API: health, status, pipeline
// start/stop and the Telegram webhook.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"laborx-notifier/internal/pipeline"
)

type Lifecycle interface {
	Start() error
	Stop() error
	Running() bool
}

type Status interface {
	LastCycle() (pipeline.CycleReport, bool)
	KnownCount() int
}

type UpdateHandler interface {
	Handle(ctx context.Context, update tgbotapi.Update)
}

// SecretHeader carries the secret_token given to setWebhook on every update
// Telegram delivers.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook enables POST /webhook/telegram. Requests must carry Secret in
// SecretHeader.
type Webhook struct {
	Handler UpdateHandler
	Secret  string
}

type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	lifecycle  Lifecycle
	status     Status
	webhook    *Webhook
	log        logrus.FieldLogger
}

// New builds the router. webhook may be nil, in which case the webhook
// endpoint is not registered.
func New(port string, lifecycle Lifecycle, status Status, webhook *Webhook, log logrus.FieldLogger) (*Server, error) {
	if webhook != nil && webhook.Secret == "" {
		return nil, errors.New("webhook endpoint needs a secret")
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	s := &Server{
		router:    router,
		lifecycle: lifecycle,
		status:    status,
		webhook:   webhook,
		log:       log,
	}
	s.setUpRoutes()
	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	return s, nil
}

func (s *Server) setUpRoutes() {
	s.router.GET("/", s.health)
	s.router.GET("/status", s.getStatus)
	s.router.POST("/pipeline/start", s.start)
	s.router.POST("/pipeline/stop", s.stop)
	if s.webhook != nil {
		s.router.POST("/webhook/telegram", requireSecret(s.webhook.Secret, s.log), s.handleUpdate)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving until Shutdown is called.
func (s *Server) Run() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("🌐 Server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Info("Server shutdown completed")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "LaborX notifier is running!",
		"status":  "healthy",
	})
}

func (s *Server) getStatus(c *gin.Context) {
	resp := gin.H{
		"running": s.lifecycle.Running(),
		"known":   s.status.KnownCount(),
	}
	if report, ok := s.status.LastCycle(); ok {
		resp["last_cycle"] = report
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) start(c *gin.Context) {
	if err := s.lifecycle.Start(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) stop(c *gin.Context) {
	if err := s.lifecycle.Stop(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleUpdate(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	s.webhook.Handler.Handle(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	if errors.Is(err, pipeline.ErrAlreadyRunning) || errors.Is(err, pipeline.ErrNotRunning) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func requireSecret(secret string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.WithField("remote", c.ClientIP()).Warn("⚠️ Webhook request with bad secret")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

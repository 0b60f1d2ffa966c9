package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/ingest"
	"github.com/conorfennell/studydeck/internal/study"
	"github.com/conorfennell/studydeck/internal/sync"
)

// Options tunes the HTTP boundary.
type Options struct {
	MaxUploadBytes int64
	CORSOrigins    []string
	Sources        []string
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	study    *study.Service
	pipeline *ingest.Pipeline
	syncer   *sync.Syncer
	opts     Options
	router   *gin.Engine
}

// NewServer creates and configures a new server. syncer may be nil, in which
// case POST /sync is not available.
func NewServer(svc *study.Service, pipeline *ingest.Pipeline, syncer *sync.Syncer, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		study:    svc,
		pipeline: pipeline,
		syncer:   syncer,
		opts:     opts,
		router:   gin.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.opts.CORSOrigins) == 0 || slices.Contains(s.opts.CORSOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.CORSOrigins
	}
	s.router.Use(gin.Logger(), gin.Recovery(), cors.New(corsConfig))
	s.router.MaxMultipartMemory = s.opts.MaxUploadBytes

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.POST("/ingest/pdf", s.handleIngest)

	cards := s.router.Group("/cards")
	cards.GET("", s.handleGetCards)
	cards.GET("/due", s.handleGetDueCards)
	cards.POST("", s.handlePostCard)
	cards.POST("/accept", s.handleAcceptCards)
	cards.PATCH("/:id", s.handlePatchCard)
	cards.POST("/:id/review", s.handlePostReview)

	s.router.POST("/sessions", s.handlePostSession)
	s.router.GET("/progress", s.handleGetProgress)
	s.router.GET("/analytics", s.handleGetAnalytics)
	s.router.GET("/activity", s.handleGetActivity)
	s.router.POST("/sync", s.handlePostSync)
}

// handleIngest extracts the uploaded document and returns generated cards.
// Nothing is stored; the client accepts cards through /cards/accept.
func (s *Server) handleIngest(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file"})
		return
	}
	if fh.Size > s.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes)})
		return
	}

	f, err := fh.Open()
	if err != nil {
		slog.Error("Error opening upload", "file", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes))
	if err != nil {
		slog.Error("Error reading upload", "file", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res, err := s.pipeline.IngestReader(c.Request.Context(), bytes.NewReader(data), int64(len(data)), fh.Filename)
	if err != nil {
		slog.Error("Error ingesting document", "file", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetCards(c *gin.Context) {
	c.JSON(http.StatusOK, s.study.Cards())
}

// handleGetDueCards lists due cards in study order.
func (s *Server) handleGetDueCards(c *gin.Context) {
	c.JSON(http.StatusOK, s.study.DueCards())
}

func (s *Server) handlePostCard(c *gin.Context) {
	var in study.CardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card, err := s.study.AddCard(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// handleAcceptCards stores generated cards the learner kept.
func (s *Server) handleAcceptCards(c *gin.Context) {
	var in struct {
		Cards []domain.GeneratedCard `json:"cards"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := s.study.AcceptGenerated(c.Request.Context(), in.Cards)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (s *Server) handlePatchCard(c *gin.Context) {
	var u study.CardUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card, err := s.study.UpdateCard(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// handlePostReview applies one answer to a card and returns the rescheduled card.
func (s *Server) handlePostReview(c *gin.Context) {
	var in study.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.CardID = c.Param("id")

	card, err := s.study.SubmitReview(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handlePostSession(c *gin.Context) {
	var in study.SessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := s.study.RecordSession(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.study.Progress())
}

func (s *Server) handleGetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, s.study.Analytics())
}

// handleGetActivity returns review counts per day for the heatmap.
func (s *Server) handleGetActivity(c *gin.Context) {
	c.JSON(http.StatusOK, s.study.Activity())
}

// handlePostSync triggers a sync of the configured sources. It runs in the
// foreground so the caller gets the report, and answers 409 while another
// sync is running.
func (s *Server) handlePostSync(c *gin.Context) {
	if s.syncer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sync is not configured"})
		return
	}
	report, err := s.syncer.Run(c.Request.Context(), s.opts.Sources)
	if errors.Is(err, sync.ErrRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	errs := make([]string, len(report.Errors))
	for i, err := range report.Errors {
		errs[i] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"files":  report.Files,
		"added":  report.Added,
		"errors": errs,
	})
}

// writeError maps domain errors onto status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

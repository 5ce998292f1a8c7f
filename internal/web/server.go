// Package web serves the record service over HTTP and provides the matching client.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"folio/internal/model"
	"folio/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecordService is the narrow store contract required by the HTTP API.
type RecordService interface {
	LoadCollection(ctx context.Context, key string) (model.Collection, error)
	SubmitOrder(ctx context.Context, c model.OrderCommit) (model.Ack, error)
	SubmitToggle(ctx context.Context, c model.ToggleCommit) (model.Ack, error)
	CollectionCounts(ctx context.Context) (map[string]int, error)
	CreateItem(ctx context.Context, in store.NewItem) (model.Item, error)
	DeleteItem(ctx context.Context, collection, id string) error
	UpdateItemText(ctx context.Context, collection, id, title, subtitle string) (model.Item, error)
	Events(ctx context.Context, limit int) ([]model.Event, error)
}

type ServerConfig struct {
	Addr   string
	Logger *zap.Logger
}

// Server provides the HTTP API of the record service.
type Server struct {
	mu        sync.RWMutex
	cfg       ServerConfig
	svc       RecordService
	log       *zap.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

func NewServer(cfg ServerConfig, svc RecordService) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:3335"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		svc:    svc,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Addr returns the bound address once started, and the configured one before that.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Handler returns the API routes. Start uses it; tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/collections", s.handleCollections)
	api.GET("/collections/:key", s.handleCollection)
	api.PUT("/collections/:key/groups/:group/order", s.handleOrder)
	api.PUT("/collections/:key/items/:id/flags/:flag", s.handleFlag)
	api.POST("/collections/:key/items", s.handleCreateItem)
	api.PATCH("/collections/:key/items/:id", s.handleUpdateItem)
	api.DELETE("/collections/:key/items/:id", s.handleDeleteItem)
	api.GET("/events", s.handleEvents)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()

	s.log.Info("http api listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http api stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

const (
	codeNotFound    = "not_found"
	codeCapExceeded = "cap_exceeded"
	codeStale       = "stale"
	codeInvalid     = "invalid_order"
	codeBadRequest  = "bad_request"
	codeInternal    = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, store.ErrCapExceeded):
		return http.StatusConflict, codeCapExceeded
	case errors.Is(err, store.ErrStaleCommit):
		return http.StatusConflict, codeStale
	case errors.Is(err, store.ErrInvalidOrder):
		return http.StatusUnprocessableEntity, codeInvalid
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, errorBody{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: codeBadRequest})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	started := s.startTime
	s.mu.RUnlock()
	uptime := ""
	if !started.IsZero() {
		uptime = time.Since(started).Truncate(time.Second).String()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": uptime})
}

type CollectionSummary struct {
	Key    string   `json:"key"`
	Groups []string `json:"groups"`
	Items  int      `json:"items"`
}

func (s *Server) handleCollections(c *gin.Context) {
	counts, err := s.svc.CollectionCounts(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]CollectionSummary, 0, len(counts))
	for _, k := range model.Collections() {
		out = append(out, CollectionSummary{Key: k, Groups: model.DefaultGroups(k), Items: counts[k]})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCollection(c *gin.Context) {
	col, err := s.svc.LoadCollection(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

type orderRequest struct {
	IDs []string `json:"ids" binding:"required"`
	Seq uint64   `json:"seq"`
}

func (s *Server) handleOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body or missing ids field")
		return
	}
	ack, err := s.svc.SubmitOrder(c.Request.Context(), model.OrderCommit{
		Collection: c.Param("key"),
		Group:      c.Param("group"),
		IDs:        req.IDs,
		Seq:        req.Seq,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

type flagRequest struct {
	Value *bool  `json:"value" binding:"required"`
	Seq   uint64 `json:"seq"`
}

func (s *Server) handleFlag(c *gin.Context) {
	flag, err := model.ParseFlag(c.Param("flag"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body or missing value field")
		return
	}
	ack, err := s.svc.SubmitToggle(c.Request.Context(), model.ToggleCommit{
		Collection: c.Param("key"),
		ItemID:     c.Param("id"),
		Flag:       flag,
		Value:      *req.Value,
		Seq:        req.Seq,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) handleCreateItem(c *gin.Context) {
	var in store.NewItem
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	in.Collection = c.Param("key")
	if strings.TrimSpace(in.Title) == "" {
		badRequest(c, "missing title")
		return
	}
	it, err := s.svc.CreateItem(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

type updateItemRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	it, err := s.svc.UpdateItemText(c.Request.Context(), c.Param("key"), c.Param("id"), req.Title, req.Subtitle)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	if err := s.svc.DeleteItem(c.Request.Context(), c.Param("key"), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	evs, err := s.svc.Events(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

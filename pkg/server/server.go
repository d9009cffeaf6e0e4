// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package server exposes a predictor.Predictor over HTTP.
//
// Routes:
//
//   - GET  /v1/info: path and number of output groups of the loaded computation unit.
//   - POST /v1/predict: predict a dense or sparse (CSR) batch given as JSON.
//   - POST /v1/load: load (or replace) the computation unit.
//   - POST /v1/free: release the computation unit.
//
// Every response carries an "X-Request-Id" header.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gomlx/treerun/pkg/core/batch"
	"github.com/gomlx/treerun/pkg/predictor"
	"github.com/gomlx/treerun/pkg/unit"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RequestIDHeader is set on every response.
const RequestIDHeader = "X-Request-Id"

// Server serves predictions of a shared Predictor.
type Server struct {
	p *predictor.Predictor

	// AllowLoad enables the /v1/load and /v1/free routes. Defaults to true.
	AllowLoad bool

	// MaxRows limits the number of rows accepted in one request. 0 means no limit.
	MaxRows int
}

// New creates a Server over p.
func New(p *predictor.Predictor) *Server {
	return &Server{p: p, AllowLoad: true}
}

// Handler returns the gin engine with all routes registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(requestIDMiddleware(), loggingMiddleware(), gin.Recovery())

	v1 := r.Group("/v1")
	v1.GET("/info", s.InfoHandler)
	v1.POST("/predict", s.PredictHandler)
	if s.AllowLoad {
		v1.POST("/load", s.LoadHandler)
		v1.POST("/free", s.FreeHandler)
	}
	return r
}

// Serve listens on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	klog.Infof("Listening on %s", ln.Addr())
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "serving on %s", ln.Addr())
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrapf(err, "shutting down server on %s", ln.Addr())
	}
	return nil
}

// ListenAndServe is like Serve, listening on the TCP address addr.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %q", addr)
	}
	return s.Serve(ctx, ln)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if klog.V(2).Enabled() {
			klog.Infof("%s %s -> %d in %s (request %s)", c.Request.Method, c.Request.URL.Path,
				c.Writer.Status(), time.Since(start), c.GetString(RequestIDHeader))
		}
	}
}

// InfoResponse is returned by GET /v1/info.
type InfoResponse struct {
	Path           string `json:"path"`
	NumOutputGroup uint64 `json:"num_output_group"`
	Loaded         bool   `json:"loaded"`
	MaxThreads     int    `json:"max_threads"`
}

// InfoHandler serves GET /v1/info.
func (s *Server) InfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Path:           s.p.Path(),
		NumOutputGroup: s.p.NumOutputGroup(),
		Loaded:         s.p.IsLoaded(),
		MaxThreads:     s.p.MaxThreads(),
	})
}

// LoadRequest is the body of POST /v1/load.
type LoadRequest struct {
	Path string `json:"path"`
}

// LoadHandler serves POST /v1/load.
func (s *Server) LoadHandler(c *gin.Context) {
	var req LoadRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Path == "" {
		abortWithError(c, http.StatusBadRequest, errors.New("missing \"path\""))
		return
	}
	if err := s.p.Load(req.Path); err != nil {
		abortWithError(c, statusForError(err), err)
		return
	}
	s.InfoHandler(c)
}

// FreeHandler serves POST /v1/free.
func (s *Server) FreeHandler(c *gin.Context) {
	s.p.Free()
	s.InfoHandler(c)
}

// bindJSON parses the request body into req, and aborts the request on failure.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	switch {
	case errors.Is(err, io.EOF):
		abortWithError(c, http.StatusBadRequest, errors.New("missing request body"))
		return false
	case err != nil:
		abortWithError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func abortWithError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		klog.Errorf("Request %s failed: %+v", c.GetString(RequestIDHeader), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusForError maps the errors of the predictor to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, unit.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, batch.ErrInvalidInput), errors.Is(err, batch.ErrTooManyRows),
		errors.Is(err, predictor.ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, unit.ErrLoad), errors.Is(err, unit.ErrSymbolNotFound),
		errors.Is(err, unit.ErrZeroOutputGroups):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

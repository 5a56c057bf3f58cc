// Package web serves the review session over HTTP for headless or remote review.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"image/png"
	"net/http"
	"sync"
	"time"

	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/session"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

//go:embed assets
var assets embed.FS

const shutdownTimeout = 5 * time.Second

var _ session.Releaser = (*Surface)(nil)

// Surface keeps the latest frame as PNG and turns HTTP requests into session events.
type Surface struct {
	addr       string
	confirmKey rune

	mu       sync.RWMutex
	frame    *session.Frame
	overlay  []byte
	revision uint64
	units    int
	closed   bool
	// pending is set once a confirmation for the current image is queued.
	pending bool

	events chan session.Event
	router *gin.Engine
	logger logger.Logger
}

type stateResponse struct {
	Active     bool    `json:"active"`
	Name       string  `json:"name"`
	Threshold  float64 `json:"threshold"`
	Units      int     `json:"units"`
	Foreground float64 `json:"foreground"`
	Revision   uint64  `json:"revision"`
	ConfirmKey string  `json:"confirm_key"`
}

type thresholdRequest struct {
	Units *int `json:"units" binding:"required,min=0,max=100"`
}

type confirmRequest struct {
	Revision *uint64 `json:"revision"`
}

func New(addr string, confirmKey rune, initialUnits int, log logger.Logger) *Surface {
	gin.SetMode(gin.ReleaseMode)

	s := &Surface{
		addr:       addr,
		confirmKey: confirmKey,
		units:      initialUnits,
		events:     make(chan session.Event, 64),
		logger:     log,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Surface) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.logger))
	r.Use(static.Serve("/", static.EmbedFolder(assets, "assets")))

	api := r.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/overlay.png", s.handleOverlay)
		api.POST("/threshold", s.handleThreshold)
		api.POST("/confirm", s.handleConfirm)
	}

	return r
}

// Handler exposes the router.
func (s *Surface) Handler() http.Handler {
	return s.router
}

func (s *Surface) Display(frame session.Frame) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Overlay); err != nil {
		s.logger.Error("WebSurface", "overlay not encoded", err, map[string]interface{}{"image": frame.Name})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f := frame
	s.frame = &f
	s.overlay = buf.Bytes()
	s.units = frame.Units
	s.revision++
}

func (s *Surface) Events() <-chan session.Event {
	return s.events
}

// Run serves HTTP until ctx ends, then shuts the server down and closes Events.
func (s *Surface) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("WebSurface", "review server listening", map[string]interface{}{"addr": s.addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warning("WebSurface", "server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}

	s.closeEvents()
	return runErr
}

func (s *Surface) handleState(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := stateResponse{
		Units:      s.units,
		Threshold:  float64(s.units) / 100,
		Revision:   s.revision,
		ConfirmKey: string(s.confirmKey),
	}
	if s.frame != nil {
		resp.Active = true
		resp.Name = s.frame.Name
		resp.Threshold = float64(s.frame.Threshold)
		resp.Foreground = s.frame.Foreground
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Surface) handleOverlay(c *gin.Context) {
	s.mu.RLock()
	overlay := s.overlay
	s.mu.RUnlock()

	if overlay == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrNoActiveSession.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", overlay)
}

func (s *Surface) handleThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.send(c, session.ThresholdChanged{Units: *req.Units})
}

// handleConfirm accepts an optional revision; a confirmation for a frame that has
// since been replaced, or sent while no image is under review, is refused.
func (s *Surface) handleConfirm(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.frame == nil:
		c.JSON(http.StatusConflict, gin.H{"error": models.ErrNoActiveSession.Error()})
	case s.pending:
		c.JSON(http.StatusConflict, gin.H{"error": "confirmation already pending", "revision": s.revision})
	case req.Revision != nil && *req.Revision != s.revision:
		c.JSON(http.StatusConflict, gin.H{"error": "overlay changed since it was displayed", "revision": s.revision})
	default:
		s.pending = s.enqueue(c, session.Confirm{})
	}
}

// Release drops the frame of the image that just left review so the page shows it is
// waiting for the next one.
func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	s.overlay = nil
	s.pending = false
}

func (s *Surface) send(c *gin.Context, ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(c, ev)
}

// enqueue must be called with mu held.
func (s *Surface) enqueue(c *gin.Context, ev session.Event) bool {
	if s.closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": session.ErrSurfaceClosed.Error()})
		return false
	}
	select {
	case s.events <- ev:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
		return true
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue full"})
		return false
	}
}

func (s *Surface) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Package server - HTTP and websocket front end of the navigation pipeline.
package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/nvr-ai/go-wayfinder/config"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/internal/log"
	"github.com/nvr-ai/go-wayfinder/profiler"
	"github.com/nvr-ai/go-wayfinder/protocol"
	"github.com/nvr-ai/go-wayfinder/publish"
)

// publishTimeout bounds how long a request waits to queue its event.
const publishTimeout = 2 * time.Second

// Stats are the server counters exposed next to the profiler snapshot.
type Stats struct {
	Frames   int64 `json:"frames"`
	Rejected int64 `json:"rejected"`
	Streams  int64 `json:"streams"`
}

// Server serves navigation requests.
type Server struct {
	app       *fiber.App
	pipeline  *controller.Pipeline
	publisher publish.Publisher
	profiler  *profiler.Profiler
	logger    *slog.Logger

	frames   atomic.Int64
	rejected atomic.Int64
	streams  atomic.Int64
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// Publisher receives every decision. Defaults to publish.NopPublisher.
	Publisher publish.Publisher
	// Profiler feeds /api/v1/stats. May be nil.
	Profiler *profiler.Profiler
	// Logger defaults to the global logger.
	Logger *slog.Logger
}

// New builds the server and registers its routes.
//
// Arguments:
//   - cfg: Listener limits and timeouts.
//   - pipeline: The frame pipeline.
//   - opts: Optional publisher, profiler and logger.
//
// Returns:
//   - *Server: The server, not yet listening.
func New(cfg config.ServerConfig, pipeline *controller.Pipeline, opts Options) *Server {
	if opts.Publisher == nil {
		opts.Publisher = publish.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = log.L()
	}

	s := &Server{
		pipeline:  pipeline,
		publisher: opts.Publisher,
		profiler:  opts.Profiler,
		logger:    opts.Logger.With("component", "server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-wayfinder",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          s.handleError,
	})

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api/v1")
	api.Post("/navigate", s.handleNavigate)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/navigate", websocket.New(s.handleNavigateWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Stats returns the request counters.
func (s *Server) Stats() Stats {
	return Stats{
		Frames:   s.frames.Load(),
		Rejected: s.rejected.Load(),
		Streams:  s.streams.Load(),
	}
}

// navigate runs one request through the pipeline and publishes the decision.
func (s *Server) navigate(ctx context.Context, req protocol.NavigateRequest) (protocol.NavigateResponse, error) {
	frame, err := req.Frame()
	if err != nil {
		s.rejected.Add(1)
		return protocol.NavigateResponse{}, err
	}

	out, err := s.pipeline.Process(frame)
	if err != nil {
		s.rejected.Add(1)
		return protocol.NavigateResponse{}, err
	}
	s.frames.Add(1)

	s.publish(ctx, out, frame.Target)
	return protocol.NewNavigateResponse(out), nil
}

// publish never fails the request; a lost event only costs one announcement.
func (s *Server) publish(ctx context.Context, out controller.Outcome, target string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	cmd := out.Command
	if out.Guidance != nil && cmd.Command != controller.CommandStop {
		cmd = *out.Guidance
	}
	event := publish.NewEvent(out.FrameID, cmd, target, time.Now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish failed", "frame", out.FrameID, "error", err)
	}
}

package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/memory"
	"github.com/llmpagina/avamem/pkg/multimodal"
)

// Config holds API server settings.
type Config struct {
	ListenAddr string
}

// Server is the read-only diagnostic API over the memory system.
type Server struct {
	config     Config
	manager    *memory.Manager
	multimodal *multimodal.Adapter
	logger     *zap.Logger
	app        *fiber.App
}

// NewServer creates a new API server. The manager is injected so the CLI
// and server share one system; the multimodal adapter may be nil when
// the relational backend is down, which disables /validate.
func NewServer(config Config, manager *memory.Manager, mm *multimodal.Adapter, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:     config,
		manager:    manager,
		multimodal: mm,
		logger:     logger,
		app:        app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/status", s.handleStatus)
	app.Get("/stats/:session", s.handleStats)
	app.Get("/context/:session", s.handleRecentContext)
	app.Get("/validate", s.handleValidate)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

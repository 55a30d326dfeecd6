package http_handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-shard-ring/internal/node/config"
	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	msgDataNotFound  = "data not found"
	msgAddFailed     = "adding new data failed"
	msgInvalidJSON   = "invalid JSON body"
	msgNoOwner       = "no owner known yet"
	msgAddSuccessful = "data added successfully"

	requestIDKey = "requestid"
)

// IDGenerator issues request IDs for requests that arrive without one.
type IDGenerator interface {
	NextString() (string, error)
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	service  port.NodeService
	ids      IDGenerator
	gatherer prometheus.Gatherer
}

// NewServer builds the HTTP surface. gatherer may be nil, in which case no
// metrics route is registered.
func NewServer(cfg *config.Config, service port.NodeService, ids IDGenerator, gatherer prometheus.Gatherer) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:      app,
		cfg:      cfg,
		service:  service,
		ids:      ids,
		gatherer: gatherer,
	}

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  s.nextRequestID,
		ContextKey: requestIDKey,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/api/data", s.handleList)
	s.app.Post("/api/data", s.handleWrite)
	s.app.Post("/api/data/node", s.handleNodeWrite)
	s.app.Get("/api/ring", s.handleRing)
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/readyz", s.handleReady)

	if s.gatherer != nil && s.cfg.Metrics.Enabled {
		s.app.Get(s.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

func (s *Server) Start() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) nextRequestID() string {
	if s.ids != nil {
		if id, err := s.ids.NextString(); err == nil {
			return id
		}
	}
	return utils.UUIDv4()
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

func (s *Server) sendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).SendString(message)
}

func (s *Server) handleList(c *fiber.Ctx) error {
	records, err := s.service.ListRecords(c.UserContext())
	if err != nil {
		sdklogger.Warnw("Listing records failed", "request_id", requestIDOf(c), "error", err.Error())
		return s.sendError(c, fiber.StatusBadRequest, msgDataNotFound)
	}
	return c.JSON(records)
}

func (s *Server) handleWrite(c *fiber.Ctx) error {
	requestID := requestIDOf(c)

	outcome, err := s.service.StoreRecord(c.UserContext(), c.Body(), requestID)
	switch {
	case errors.Is(err, port.ErrInvalidPayload):
		return s.sendError(c, fiber.StatusBadRequest, msgInvalidJSON)
	case errors.Is(err, ring.ErrNoOwner):
		c.Set(fiber.HeaderRetryAfter, "1")
		return s.sendError(c, fiber.StatusServiceUnavailable, msgNoOwner)
	case err != nil:
		sdklogger.Warnw("Write failed", "request_id", requestID, "error", err.Error())
		return s.sendError(c, fiber.StatusBadRequest, msgAddFailed)
	}

	if fwd := outcome.Forwarded; fwd != nil {
		if fwd.ContentType != "" {
			c.Set(fiber.HeaderContentType, fwd.ContentType)
		}
		return c.Status(fwd.StatusCode).Send(fwd.Body)
	}
	return c.JSON(fiber.Map{"data": msgAddSuccessful})
}

func (s *Server) handleNodeWrite(c *fiber.Ctx) error {
	var record domain.Record
	if err := s.app.Config().JSONDecoder(c.Body(), &record); err != nil {
		sdklogger.Warnw("Undecodable record from peer", "request_id", requestIDOf(c), "error", err.Error())
		return s.sendError(c, fiber.StatusBadRequest, msgAddFailed)
	}

	if err := s.service.StoreLocal(c.UserContext(), record); err != nil {
		sdklogger.Warnw("Storing forwarded record failed", "request_id", requestIDOf(c), "key", record.Key, "error", err.Error())
		return s.sendError(c, fiber.StatusBadRequest, msgAddFailed)
	}
	return c.JSON(fiber.Map{"data": msgAddSuccessful})
}

func (s *Server) handleRing(c *fiber.Ctx) error {
	return c.JSON(s.service.Status())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleReady(c *fiber.Ctx) error {
	status := s.service.Status()
	if !status.Ready || !status.Registered {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":     "not ready",
			"ready":      status.Ready,
			"registered": status.Registered,
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "members": len(status.Members)})
}

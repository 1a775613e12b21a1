// Package api exposes the workflows and the matcher over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/matching"
	"github.com/spigell/ses-matcher/internal/workflow"
)

const requestIDHeader = "X-Request-ID"

// Flows is satisfied by *workflow.Workflow.
type Flows interface {
	FormatCandidates(ctx context.Context, p workflow.Params) (workflow.Report, error)
	FormatRequisitions(ctx context.Context, p workflow.Params) (workflow.Report, error)
	IndexCandidates(ctx context.Context, p workflow.Params) (workflow.Report, error)
}

// Matcher is satisfied by *matching.Matcher.
type Matcher interface {
	Match(ctx context.Context, requisitionJSON string) (*matching.Result, error)
	Quick(ctx context.Context, requisitionJSON string) ([]matching.Hit, error)
	Stream(ctx context.Context, requisitionJSON string, opts matching.StreamOptions) <-chan matching.Event
}

type Server struct {
	app     *fiber.App
	flows   Flows
	matcher Matcher
	logger  *zap.Logger
}

func New(flows Flows, matcher Matcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{flows: flows, matcher: matcher, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "ses-matcher",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(s.requestID)
	s.app.Use(s.accessLog)
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	formatCandidates := s.flowHandler("format_candidates", "要員データ構造化完了", s.flows.FormatCandidates)
	formatRequisitions := s.flowHandler("format_requisitions", "案件データ構造化完了", s.flows.FormatRequisitions)
	indexCandidates := s.flowHandler("index_candidates", "要員データRAG登録完了", s.flows.IndexCandidates)

	s.app.Post("/format_candidates", formatCandidates)
	s.app.Post("/format_requisitions", formatRequisitions)
	s.app.Post("/index_candidates", indexCandidates)
	s.app.Post("/match", s.handleMatch)
	s.app.Post("/match_stream", s.handleMatchStream)

	// Paths used by existing clients.
	s.app.Post("/format_yoin", formatCandidates)
	s.app.Post("/format_anken", formatRequisitions)
	s.app.Post("/index_yoin", indexCandidates)
	s.app.Post("/matching_yoin", s.handleMatch)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Locals(requestIDHeader, id)
	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	s.requestLogger(c).Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

func (s *Server) requestLogger(c *fiber.Ctx) *zap.Logger {
	id, _ := c.Locals(requestIDHeader).(string)
	return s.logger.With(logger.RequestID(id))
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		s.requestLogger(c).Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{"status": "error", "detail": err.Error()})
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/matching"
	"github.com/spigell/ses-matcher/internal/workflow"
)

type flowFunc func(ctx context.Context, p workflow.Params) (workflow.Report, error)

// matchRequest accepts the chat-app envelope ({"inputs": {...}}) and the
// flat legacy body ({"anken": "..."}).
type matchRequest struct {
	Inputs *struct {
		Anken string  `json:"anken"`
		Mode  *string `json:"mode"`
	} `json:"inputs"`
	Anken string  `json:"anken"`
	Mode  *string `json:"mode"`
}

func (r matchRequest) resolve() (string, matching.Mode, error) {
	anken, mode := r.Anken, r.Mode
	if r.Inputs != nil {
		anken = r.Inputs.Anken
		if r.Inputs.Mode != nil {
			mode = r.Inputs.Mode
		}
	}

	if strings.TrimSpace(anken) == "" {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "inputs.anken is required")
	}

	var m matching.Mode
	if mode != nil {
		parsed, err := matching.ParseMode(*mode)
		if err != nil {
			return "", "", fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m = parsed
	}
	return anken, m, nil
}

func (s *Server) flowHandler(name, message string, run flowFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p workflow.Params
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &p); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid parameters: %v", err))
			}
		}

		log := s.requestLogger(c).With(logger.Flow(name))
		log.Info("flow requested", zap.Any("params", p))

		report, err := run(c.UserContext(), p)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"status": "success", "message": message, "report": report})
	}
}

func (s *Server) parseMatch(c *fiber.Ctx) (string, matching.Mode, error) {
	var req matchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return "", "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
	}
	return req.resolve()
}

func (s *Server) handleMatch(c *fiber.Ctx) error {
	anken, mode, err := s.parseMatch(c)
	if err != nil {
		return err
	}

	if mode == matching.ModeQuick {
		hits, err := s.matcher.Quick(c.UserContext(), anken)
		if err != nil {
			return err
		}
		if hits == nil {
			hits = []matching.Hit{}
		}
		return c.JSON(fiber.Map{"status": "success", "result": fiber.Map{"quick_results": hits}})
	}

	res, err := s.matcher.Match(c.UserContext(), anken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "result": res})
}

// handleMatchStream writes matcher events as server-sent events. A
// final_result is followed by a complete event; an error event ends the
// stream on its own.
func (s *Server) handleMatchStream(c *fiber.Ctx) error {
	anken, mode, err := s.parseMatch(c)
	if err != nil {
		return err
	}

	log := s.requestLogger(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for ev := range s.matcher.Stream(ctx, anken, matching.StreamOptions{Mode: mode}) {
			data, err := json.Marshal(ev)
			if err != nil {
				data, _ = json.Marshal(matching.Failure{Message: fmt.Sprintf("encode event: %v", err)})
				_ = writeEvent(w, data)
				return
			}
			if err := writeEvent(w, data); err != nil {
				log.Warn("stream client went away", zap.Error(err))
				return
			}
			if ev.Type() == matching.EventFinalResult {
				if err := writeEvent(w, []byte(`{"type":"complete"}`)); err != nil {
					log.Warn("stream client went away", zap.Error(err))
				}
				return
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

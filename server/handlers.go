package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/protocol"
	"github.com/pkg/errors"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleNavigate decides the command for one posted frame.
func (s *Server) handleNavigate(c *fiber.Ctx) error {
	var req protocol.NavigateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.rejected.Add(1)
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	resp, err := s.navigate(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// handleStats returns server counters and pipeline timings.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server":   s.Stats(),
		"profiler": s.profiler.Snapshot(),
	})
}

// handleNavigateWS answers each text message with one NavigateResponse, or
// an ErrorResponse for a bad frame, until the client disconnects.
func (s *Server) handleNavigateWS(c *websocket.Conn) {
	s.streams.Add(1)
	defer s.streams.Add(-1)

	logger := s.logger.With("remote", c.RemoteAddr().String())
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var reply any
		var req protocol.NavigateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.rejected.Add(1)
			reply = protocol.ErrorResponse{Error: "invalid request body: " + err.Error()}
		} else if resp, err := s.navigate(context.Background(), req); err != nil {
			reply = protocol.ErrorResponse{Error: err.Error()}
		} else {
			reply = resp
		}

		if err := c.WriteJSON(reply); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}
	}
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var ferr *fiber.Error
	switch {
	case errors.As(err, &ferr):
		code = ferr.Code
	case errors.Is(err, controller.ErrInvalidFrame):
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(protocol.ErrorResponse{Error: err.Error()})
}

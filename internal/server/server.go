// Package server dispatches protocol requests from a single client
// connection to the workspace and execute subsystems.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/execute"
	"github.com/p-arndt/werkbank/internal/workspace"
	"github.com/p-arndt/werkbank/protocol"
)

type Server struct {
	ws     *workspace.Workspace
	runner *execute.Runner
	cfg    *config.Config
	logger *slog.Logger
}

func New(ws *workspace.Workspace, runner *execute.Runner, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{ws: ws, runner: runner, cfg: cfg, logger: logger}
}

// Serve processes newline-framed requests from conn, strictly one at a
// time, until the client disconnects or ctx is cancelled. Every decoded
// line produces exactly one response line, flushed before the next read.
func (s *Server) Serve(ctx context.Context, conn net.Conn) error {
	connID := uuid.New().String()[:8]
	logger := s.logger.With("conn", connID)
	logger.Info("client connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxRecordBytes)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var req protocol.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			// The original id is unrecoverable from a malformed record.
			s.write(w, logger, errorResponse(protocol.PlaceholderID, "invalid request: "+err.Error()))
			continue
		}

		start := time.Now()
		resp := s.route(ctx, req)
		logger.Info("request",
			"id", req.ID,
			"op", req.Op,
			"status", resp.Status,
			"duration_ms", time.Since(start).Milliseconds())
		s.write(w, logger, resp)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading request line: %w", err)
	}
	logger.Info("client disconnected")
	return nil
}

// route dispatches by exact match on the operation tag.
func (s *Server) route(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Op {
	case protocol.OpReadFile:
		return s.handleReadFile(req)
	case protocol.OpWriteFile:
		return s.handleWriteFile(req)
	case protocol.OpListDir:
		return s.handleListDir(req)
	case protocol.OpExec:
		return s.handleExec(ctx, req)
	default:
		return errorResponse(req.ID, fmt.Sprintf("unknown operation: %s", req.Op))
	}
}

func (s *Server) write(w *bufio.Writer, logger *slog.Logger, resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("marshal response", "error", err)
		data = []byte(`{"id":"` + resp.ID + `","status":"error","error":"internal marshaling error"}`)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		logger.Error("write response", "error", err)
		return
	}
	if err := w.Flush(); err != nil {
		logger.Error("flush response", "error", err)
	}
}

func okResponse(id, data string) protocol.Response {
	return protocol.Response{ID: id, Status: protocol.StatusOK, Data: data}
}

func errorResponse(id, message string) protocol.Response {
	return protocol.Response{ID: id, Status: protocol.StatusError, Error: message}
}

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/p-arndt/werkbank/internal/execute"
	"github.com/p-arndt/werkbank/protocol"
)

// All handlers convert every failure into an error response; nothing
// propagates a hard failure back into the dispatch loop.

func (s *Server) handleReadFile(req protocol.Request) protocol.Response {
	if req.Path == "" {
		return errorResponse(req.ID, "missing path")
	}
	data, err := s.ws.ReadFile(req.Path)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return okResponse(req.ID, data)
}

func (s *Server) handleWriteFile(req protocol.Request) protocol.Response {
	if req.Path == "" {
		return errorResponse(req.ID, "missing path")
	}
	if req.Content == nil {
		return errorResponse(req.ID, "missing content")
	}
	n, err := s.ws.WriteFile(req.Path, []byte(*req.Content))
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return okResponse(req.ID, fmt.Sprintf("wrote %d bytes to %s", n, req.Path))
}

func (s *Server) handleListDir(req protocol.Request) protocol.Response {
	if req.Path == "" {
		return errorResponse(req.ID, "missing path")
	}
	listing, err := s.ws.ListDir(req.Path)
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}
	return okResponse(req.ID, listing)
}

func (s *Server) handleExec(ctx context.Context, req protocol.Request) protocol.Response {
	if req.Command == "" {
		return errorResponse(req.ID, "missing command")
	}

	result, err := s.runner.Run(ctx, req.Command, s.execTimeout(req.Timeout))
	if err != nil {
		return errorResponse(req.ID, err.Error())
	}

	resp := okResponse(req.ID, formatExecBody(result))
	code := result.ExitCode
	resp.ExitCode = &code
	return resp
}

// execTimeout applies the configured default and clamps to the maximum.
func (s *Server) execTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return s.cfg.DefaultTimeout()
	}
	timeout := time.Duration(seconds) * time.Second
	if max := s.cfg.MaxTimeout(); max > 0 && timeout > max {
		return max
	}
	return timeout
}

// formatExecBody concatenates stdout, a labeled stderr block, and an exit
// code trailer for non-zero, non-timeout exits. All-empty output gets a
// sentinel so the client never sees a blank payload.
func formatExecBody(res *execute.Result) string {
	var parts []string
	if res.Stdout != "" {
		parts = append(parts, res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "STDERR:\n"+res.Stderr)
	}
	if res.ExitCode != 0 && res.ExitCode != protocol.TimeoutExitCode {
		parts = append(parts, fmt.Sprintf("Exit code: %d", res.ExitCode))
	}
	if len(parts) == 0 {
		return "[no output]"
	}
	return strings.Join(parts, "\n")
}

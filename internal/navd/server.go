// Package navd serves IndexStores to editor plugins over JSONL-RPC 2.0.
package navd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"codenav/internal/config"
	"codenav/internal/core/proc"
	"codenav/internal/index/registry"
	"codenav/internal/version"
)

const DefaultListen = "127.0.0.1:7788"

type Options struct {
	Listen   string
	Config   *config.Config
	Registry registry.Registry
	Runner   *proc.Runner
	Logger   *slog.Logger
}

type Server struct {
	opts Options
	h    *Handlers
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts: opts,
		h: NewHandlers(HandlerOptions{
			Config:   opts.Config,
			Registry: opts.Registry,
			Runner:   opts.Runner,
			Logger:   opts.Logger,
		}),
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Run() error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}

	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting connections, cancels in-flight queries and shuts
// every workspace down.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	return errors.Join(err, s.h.Close())
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	c := newLineCodec(conn)
	for {
		line, err := c.read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.log.Debug("connection closed", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = c.write(Response{
				JSONRPC: "2.0",
				ID:      json.RawMessage("null"),
				Error:   &ErrorObject{Code: codeParse, Message: "parse error"},
			})
			continue
		}

		if len(req.ID) == 0 {
			// Notification: no response.
			_ = s.dispatch(req)
			continue
		}

		if err := c.write(s.dispatch(req)); err != nil {
			return
		}
	}
}

func decodeParams(req Request, p any) *ErrorObject {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, p); err != nil {
		return &ErrorObject{Code: codeInvalidParams, Message: "invalid params"}
	}
	return nil
}

func requireWorkspace(id string) *ErrorObject {
	if strings.TrimSpace(id) == "" {
		return &ErrorObject{Code: codeInvalidParams, Message: "workspace_id is required"}
	}
	return nil
}

func serverError(err error) *ErrorObject {
	return &ErrorObject{Code: errorCode(err), Message: err.Error()}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		resp.Error = &ErrorObject{Code: codeInvalidRequest, Message: "invalid jsonrpc version"}
		return resp
	}

	ctx := s.ctx
	var (
		result any
		err    error
	)

	switch req.Method {
	case "ping":
		result = "pong"
	case "version":
		result = version.String()
	case "workspace.add":
		var p WorkspaceAddParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.WorkspaceAdd(p)
		if err != nil {
			resp.Error = &ErrorObject{Code: codeServer, Message: err.Error()}
			return resp
		}
	case "query":
		var p QueryParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		if strings.TrimSpace(p.Kind) == "" {
			resp.Error = &ErrorObject{Code: codeInvalidParams, Message: "kind is required"}
			return resp
		}
		result, err = s.h.Query(ctx, p)
	case "update":
		var p UpdateParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.Update(ctx, p)
	case "remove":
		var p RemoveParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.Remove(ctx, p)
	case "translate":
		var p TranslateParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if p.Pattern == "" {
			resp.Error = &ErrorObject{Code: codeInvalidParams, Message: "pattern is required"}
			return resp
		}
		result, err = s.h.Translate(p)
	case "highlights":
		var p HighlightsParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.Highlights(p)
	case "watch.start":
		var p WatchStartParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.WatchStart(p)
	case "watch.stop":
		var p WatchStopParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.WatchStop(p)
	case "watch.status":
		var p WatchStatusParams
		if e := decodeParams(req, &p); e != nil {
			resp.Error = e
			return resp
		}
		if e := requireWorkspace(p.WorkspaceID); e != nil {
			resp.Error = e
			return resp
		}
		result, err = s.h.WatchStatus(p)
	default:
		resp.Error = &ErrorObject{Code: codeNotFound, Message: "method not found"}
		return resp
	}

	if err != nil {
		resp.Error = serverError(err)
		return resp
	}
	resp.Result = result
	return resp
}

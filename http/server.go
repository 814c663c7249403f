package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qubane/webserv/config"
	"github.com/qubane/webserv/telemetry"
)

var tracer = otel.Tracer("github.com/qubane/webserv/http")

var ErrAlreadyRunning = errors.New("http: server is not stopped")

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RunState is the explicit process-wide run state: the lifecycle phase, the
// registry of outstanding workers, and the active-worker count. Every loop
// polls a token derived from it for cooperative cancellation.
type RunState struct {
	state   atomic.Int32
	workers sync.WaitGroup
	active  atomic.Int64
}

func (rs *RunState) State() State {
	return State(rs.state.Load())
}

func (rs *RunState) transition(from, to State) bool {
	return rs.state.CompareAndSwap(int32(from), int32(to))
}

func (rs *RunState) set(s State) {
	rs.state.Store(int32(s))
}

// Token derives the cancellation check handed to every I/O loop.
func (rs *RunState) Token() func() bool {
	return func() bool { return rs.State() != StateRunning }
}

func (rs *RunState) ActiveWorkers() int64 {
	return rs.active.Load()
}

// Server owns the listening socket, the accept loop, worker lifecycles and
// shutdown coordination. One worker handles one connection end-to-end and the
// connection closes after exactly one response.
type Server struct {
	cfg     *config.Config
	router  *Router
	logger  *slog.Logger
	metrics *telemetry.Metrics

	run      RunState
	listener net.Listener
	base     *net.TCPListener
	addr     atomic.Value
}

func NewServer(cfg *config.Config, router *Router, logger *slog.Logger, metrics *telemetry.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		router:  router,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Server) State() State {
	return s.run.State()
}

// Addr is the resolved listen address, available once the server is running.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

// Start binds the listener and runs the accept loop until the server is
// stopped or a fatal accept error occurs. It returns only after every worker
// has been joined and the listener is closed.
func (s *Server) Start() error {
	if !s.run.transition(StateStopped, StateStarting) {
		return ErrAlreadyRunning
	}

	base, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		s.run.set(StateStopped)
		return fmt.Errorf("http: listen %s: %w", s.cfg.Address(), err)
	}
	s.base = base.(*net.TCPListener)
	s.listener = base

	if s.cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
		if err != nil {
			base.Close()
			s.run.set(StateStopped)
			return fmt.Errorf("http: load tls material: %w", err)
		}
		// the handshake runs lazily on the first read; plaintext probes
		// surface there, not in the accept loop
		s.listener = tls.NewListener(base, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}

	s.addr.Store(base.Addr().String())
	s.run.set(StateRunning)
	s.logger.Info("server running", "addr", s.Addr(), "tls", s.cfg.TLSEnabled())

	acceptErr := s.acceptLoop()

	// join all outstanding workers before the listener goes away
	s.run.set(StateStopping)
	s.run.workers.Wait()
	if err := s.listener.Close(); err != nil {
		s.logger.Warn("listener close failed", "error", err)
	}
	s.run.set(StateStopped)
	s.logger.Info("server stopped")

	return acceptErr
}

// Stop requests a transition to Stopping; every loop observes it at its next
// poll point.
func (s *Server) Stop() {
	s.run.transition(StateRunning, StateStopping)
}

// Shutdown stops the server and waits until all workers have exited and the
// listener is closed, or the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Stop()

	ticker := time.NewTicker(s.cfg.IORetryInterval)
	defer ticker.Stop()

	for {
		if s.run.State() == StateStopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) acceptLoop() error {
	ctx := context.Background()

	for s.run.State() == StateRunning {
		if s.run.ActiveWorkers() >= int64(s.cfg.MaxWorkers) {
			// over the admission ceiling: defer acceptance instead of
			// failing the request
			s.metrics.AdmissionDeferred(ctx)
			time.Sleep(s.cfg.IORetryInterval)
			continue
		}

		if err := s.base.SetDeadline(time.Now().Add(s.cfg.IORetryInterval)); err != nil {
			return fmt.Errorf("http: set accept deadline: %w", err)
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.run.State() != StateRunning {
				return nil
			}
			return fmt.Errorf("http: accept: %w", err)
		}

		s.metrics.ConnectionAccepted(ctx)
		s.run.workers.Add(1)
		s.run.active.Add(1)
		go s.handleConnection(conn)
	}

	return nil
}

// handleConnection is the worker: read one request, route it, write one
// response, close. Every failure is contained here and terminates only this
// connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("worker panic", "panic", rec)
		}
		conn.Close()
		s.run.active.Add(-1)
		s.run.workers.Done()
	}()

	logger := s.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())

	opts := IOOptions{
		ReadIncrement:  s.cfg.ReadIncrement,
		MaxRequestSize: s.cfg.MaxRequestSize,
		RetryInterval:  s.cfg.IORetryInterval,
		StallReads:     s.cfg.StallReads,
		Cancelled:      s.run.Token(),
	}

	req, err := ReadRequest(conn, opts)
	if err != nil {
		s.rejectConnection(conn, logger, opts, err)
		return
	}

	ctx, span := tracer.Start(context.Background(), "request", trace.WithAttributes(
		attribute.String("http.method", req.RawMethod),
		attribute.String("http.target", req.Path),
	))
	defer span.End()

	res := s.router.Route(conn, req)
	if err := res.WriteTo(conn, opts); err != nil {
		logger.Warn("response aborted", "path", req.Path, "error", err)
		return
	}

	span.SetAttributes(attribute.Int("http.status_code", int(res.Status)))
	s.metrics.RequestServed(ctx, res.Status)
	logger.Info("request served", "method", req.RawMethod, "path", req.Path, "status", res.Status)
}

// rejectConnection decides whether a failed read still deserves a response.
// A header block whose request line at least parsed gets a 400; everything
// else (stalls, oversize, early close, TLS noise from plaintext probes) is
// dropped without writing.
func (s *Server) rejectConnection(conn net.Conn, logger *slog.Logger, opts IOOptions, err error) {
	var recordErr tls.RecordHeaderError
	switch {
	case errors.Is(err, ErrMalformedHeader):
		logger.Warn("malformed header block", "error", err)
		res := s.router.ErrorResponse(StatusBadRequest, "")
		res.SetHeader("content-length", strconv.Itoa(len(res.Body)))
		res.SetHeader("connection", "close")
		if writeErr := res.WriteTo(conn, opts); writeErr != nil {
			logger.Warn("bad request response aborted", "error", writeErr)
		}
	case errors.As(err, &recordErr):
		logger.Debug("tls handshake noise", "error", err)
	case errors.Is(err, ErrConnectionClosed):
		logger.Debug("peer closed early")
	default:
		logger.Warn("dropping connection", "error", err)
	}
}

// Package brokerd is the elevated broker service: it owns the listening
// socket, authenticates callers, consults the policy engine and is the only
// component that executes privileged operations.
package brokerd

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/caller"
	"github.com/codefionn/pfortner/internal/config"
	"github.com/codefionn/pfortner/internal/consts"
	"github.com/codefionn/pfortner/internal/logger"
	"github.com/codefionn/pfortner/internal/ops"
	"github.com/codefionn/pfortner/internal/policy"
	"github.com/codefionn/pfortner/internal/protocol"
)

// Deps are the collaborators a provisioned server needs. The daemon builds
// them after the listener is already up so early clients get a structured
// not-ready rejection instead of a connection refusal.
type Deps struct {
	Engine    *policy.Engine
	Signer    *protocol.Signer
	Validator *protocol.Validator
	Resolver  caller.Resolver
	Executor  ops.Executor
	Audit     *audit.Store
}

// Server is the Unix socket broker service.
type Server struct {
	cfg *config.Config

	depsMu sync.RWMutex
	deps   *Deps

	listener net.Listener

	replay *replayCache

	connMu    sync.Mutex
	connCount int
	connID    int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a server for cfg. It does not listen yet.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:      cfg,
		replay:   newReplayCache(cfg.FreshnessWindow()),
		stopChan: make(chan struct{}),
	}
}

// Start creates the socket and begins accepting connections. Requests are
// answered with SERVICE_NOT_READY until Provision is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("brokerd: server already running")
	}
	s.running = true
	s.mu.Unlock()

	socketPath, err := filepath.Abs(s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("brokerd: resolve socket path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o750); err != nil {
		return fmt.Errorf("brokerd: create runtime directory: %w", err)
	}
	// A stale socket from an unclean shutdown blocks the listen call.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("brokerd: remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("brokerd: listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o660); err != nil {
		listener.Close()
		return fmt.Errorf("brokerd: restrict socket mode: %w", err)
	}
	s.listener = listener

	s.wg.Add(2)
	go s.acceptLoop(ctx)
	go s.maintenanceLoop()

	logger.Info("broker listening on %s (max connections: %d)", socketPath, s.cfg.MaxConnections)
	return nil
}

// Provision hands the server its collaborators and opens the ready gate.
func (s *Server) Provision(deps *Deps) {
	s.depsMu.Lock()
	s.deps = deps
	s.depsMu.Unlock()
	logger.Info("broker provisioned, accepting requests")
}

// Ready reports whether the policy engine and its collaborators are loaded.
func (s *Server) Ready() bool {
	s.depsMu.RLock()
	defer s.depsMu.RUnlock()
	return s.deps != nil
}

func (s *Server) getDeps() *Deps {
	s.depsMu.RLock()
	defer s.depsMu.RUnlock()
	return s.deps
}

// Stop closes the listener, waits for connection workers and removes the
// socket file.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		logger.Info("stopping broker")
		close(s.stopChan)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()

		if socketPath, err := filepath.Abs(s.cfg.SocketPath); err == nil {
			if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove socket file: %v", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logger.Info("broker stopped")
	})
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		// Short accept deadline keeps shutdown prompt.
		if ul, ok := s.listener.(*net.UnixListener); ok {
			ul.SetDeadline(time.Now().Add(consts.Timeout1Second))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopChan:
				return
			default:
			}
			logger.Error("accept failed: %v", err)
			continue
		}

		if !s.reserveSlot() {
			logger.Warn("connection limit reached, rejecting caller")
			s.rejectOverCapacity(conn)
			continue
		}

		id := s.nextConnID()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.releaseSlot()
			s.serveConn(id, conn)
		}()
	}
}

// rejectOverCapacity writes one structured rejection and closes. The caller
// gets a reason instead of a silent drop.
func (s *Server) rejectOverCapacity(conn net.Conn) {
	resp := protocol.NewErrorResponse("", protocol.ErrorCodeNotReady, "connection limit reached")
	if data, err := marshalResponse(resp); err == nil {
		conn.SetWriteDeadline(time.Now().Add(consts.Timeout1Second))
		conn.Write(data)
	}
	conn.Close()
}

func (s *Server) reserveSlot() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connCount >= s.cfg.MaxConnections {
		return false
	}
	s.connCount++
	return true
}

func (s *Server) releaseSlot() {
	s.connMu.Lock()
	s.connCount--
	s.connMu.Unlock()
}

func (s *Server) nextConnID() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connID++
	return fmt.Sprintf("conn_%d", s.connID)
}

// maintenanceLoop prunes the replay cache, idle rate-limit entries and aged
// audit rows on a timer.
func (s *Server) maintenanceLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(consts.Timeout60Seconds)
	defer ticker.Stop()

	lastAuditPrune := time.Now()
	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.replay.prune(now)
			deps := s.getDeps()
			if deps == nil {
				continue
			}
			if deps.Engine != nil {
				// Rate-limit entries idle for an hour are dead weight.
				deps.Engine.Limiter().PruneIdle(consts.Duration1Hour)
			}
			if deps.Audit != nil && now.Sub(lastAuditPrune) >= consts.Duration1Hour {
				lastAuditPrune = now
				retention := time.Duration(s.cfg.AuditRetentionDays) * consts.Duration24Hours
				if n, err := deps.Audit.PruneBefore(now.Add(-retention)); err != nil {
					logger.Warn("audit prune failed: %v", err)
				} else if n > 0 {
					logger.Debug("pruned %d audit events", n)
				}
			}
		}
	}
}

package companion

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/openmaple/maplelink/logger"
	"github.com/openmaple/maplelink/maple"
)

// Handler produces the reply for one received frame.
// Returning false suppresses the reply.
type Handler func(req *maple.Message) (*maple.Message, bool)

// AckHandler acknowledges every frame: it swaps the address pair, sets the
// acknowledge command, and carries no payload.
func AckHandler(req *maple.Message) (*maple.Message, bool) {
	return &maple.Message{
		Command:  maple.RespAck,
		DestAP:   req.OriginAP,
		OriginAP: req.DestAP,
	}, true
}

// Server is a line-protocol TCP server acting as the virtual accessory host.
type Server struct {
	addr    string
	handler Handler
	logger  logger.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	closed    atomic.Bool
	connCount atomic.Int32
	wg        sync.WaitGroup
}

// NewServer creates a server listening on addr (host:port; port 0 picks a free
// port). A nil handler defaults to AckHandler; a nil log defaults to the global
// logger.
func NewServer(addr string, handler Handler, log logger.Logger) *Server {
	if handler == nil {
		handler = AckHandler
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Server{
		addr:    addr,
		handler: handler,
		logger:  log,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start begins listening and accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("companion: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("companion listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ConnCount returns the number of currently served connections.
func (s *Server) ConnCount() int32 {
	return s.connCount.Load()
}

// Close stops the listener, closes all served connections, and waits for the
// serve goroutines to finish. Safe to call more than once.
func (s *Server) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if !s.closed.Load() && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.connCount.Add(1)
		s.logger.Debug("relay connected", "remote_addr", conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.connCount.Add(-1)
		s.wg.Done()
		s.logger.Debug("relay disconnected", "remote_addr", conn.RemoteAddr().String())
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		req, err := maple.Decode(line)
		if err != nil {
			// A garbled line is not a dead relay; keep serving.
			s.logger.Warn("malformed frame", "error", err, "remote_addr", conn.RemoteAddr().String())
			continue
		}

		reply, ok := s.handler(req)
		if !ok {
			continue
		}

		if _, err := conn.Write(maple.Encode(reply)); err != nil {
			return
		}
	}
}

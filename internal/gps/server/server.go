package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"

	"nuha.dev/fleettrack/internal/gps/aepl"
	"nuha.dev/fleettrack/internal/gps/conn"
	"nuha.dev/fleettrack/internal/ingest"
)

const (
	NEW_CONNECTION    string = "new_connection"
	CONNECTION_CLOSED string = "connection_closed"
	BAD_FRAME         string = "bad_frame"
	INGEST_FAILED     string = "ingest_failed"
	BIND_CONTENTION   string = "bind_contention"
)

type ServerConfig struct {
	Host            string
	Port            int
	MaxBindAttempts int
	BindRetryDelay  time.Duration
	IdleTimeout     time.Duration
	StoreTimeout    time.Duration
}

type Server struct {
	mu          sync.Mutex
	log         log.Logger
	config      *ServerConfig
	svc         *ingest.Service
	cid_counter uint64
	listener    net.Listener
	port        int
}

func NewServer(svc *ingest.Service, config *ServerConfig) *Server {
	s := &Server{}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "gps-server").Value()
	s.config = config
	s.svc = svc
	return s
}

// Port reports the port the listener actually bound, which differs from
// the configured one after bind contention.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) Run() error {
	ln, err := s.bind()
	if err != nil {
		s.log.Error().Err(err).Msg("unable to listen")
		return err
	}
	pln := &proxyproto.Listener{Listener: ln}
	s.log.Info().Msgf("gps listener running on %s", ln.Addr().String())

	for {
		_c, err := pln.Accept()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to accept new connection")
			pln.Close()
			return err
		}
		s.mu.Lock()
		cid := s.cid_counter
		s.cid_counter++
		s.mu.Unlock()
		c := conn.NewConn(_c, cid)
		s.log.Info().Str("event", NEW_CONNECTION).EmbedObject(c).Msg("")
		go s.handle(c)
	}
}

// bind carries the incremented candidate port through each retry so
// contention never loops on the same busy port, and gives up after the
// configured number of attempts.
func (s *Server) bind() (net.Listener, error) {
	port := s.config.Port
	for attempt := 1; ; attempt++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, strconv.Itoa(port)))
		if err == nil {
			s.mu.Lock()
			s.listener = ln
			s.port = port
			s.mu.Unlock()
			return ln, nil
		}
		if !isAddrInUse(err) {
			return nil, err
		}
		if attempt >= s.config.MaxBindAttempts {
			return nil, fmt.Errorf("no free port after %d attempts: %w", attempt, err)
		}
		s.log.Warn().Str("event", BIND_CONTENTION).Int("port", port).Int("next_port", port+1).Msg("port already in use, retrying")
		port++
		time.Sleep(s.config.BindRetryDelay)
	}
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func (s *Server) handle(c *conn.Conn) {
	defer c.Close()
	for {
		if s.config.IdleTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		rec, err := c.ReadRecord('\n')
		if err != nil && err != io.EOF {
			s.log.Debug().Err(err).Str("event", CONNECTION_CLOSED).EmbedObject(c).Msg("")
			return
		}
		msg := strings.TrimSpace(rec)
		if msg != "" {
			s.process(c, msg)
		}
		if err == io.EOF {
			s.log.Debug().Str("event", CONNECTION_CLOSED).EmbedObject(c).Msg("peer closed")
			return
		}
	}
}

// process handles one framed record. A malformed record is logged and
// dropped, the connection stays open.
func (s *Server) process(c *conn.Conn, msg string) {
	loc, err := aepl.Parse(msg)
	if err != nil {
		s.log.Debug().Str("event", BAD_FRAME).EmbedObject(c).Str("raw", msg).Msg("unrecognized message dropped")
		return
	}
	ctx := context.Background()
	if s.config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StoreTimeout)
		defer cancel()
	}
	// device reports carry coordinates only, telemetry keeps its stored value
	_, err = s.svc.Ingest(ctx, ingest.Report{Imei: loc.IMEI, Lat: loc.Latitude, Lng: loc.Longitude})
	if err != nil {
		s.log.Error().Err(err).Str("event", INGEST_FAILED).EmbedObject(c).Str("imei", loc.IMEI).Msg("")
	}
}

package webstream

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"nuha.dev/fleettrack/internal/hub"
	"nuha.dev/fleettrack/internal/util"
)

var errClientClosed = errors.New("client closed")

// Handler upgrades /ws requests and keeps each client subscribed to the
// hub for as long as the websocket lives.
type Handler struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

func NewHandler(h *hub.Hub) *Handler {
	o := &Handler{}
	o.hub = h
	o.logger = log.With().Str("module", "webstream").Logger()
	return o
}

func (ws *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		ws.logger.Err(err).Msg("error while upgrading websocket")
		return
	}
	cl := newClient(c, ws.logger)
	ws.hub.Subscribe(cl)
	defer ws.hub.Unsubscribe(cl)
	cl.run(r.Context())
}

// Client is one live observer. Pushes land in a small buffer and are
// dropped when the buffer is full, the periodic fleet refresh is the
// backstop for anything missed.
type Client struct {
	name    string
	c       *websocket.Conn
	wch     chan []byte
	done    chan struct{}
	closed  uint32
	pushed  uint64
	skipped uint64
	logger  zerolog.Logger
}

func newClient(c *websocket.Conn, logger zerolog.Logger) *Client {
	cl := &Client{}
	cl.name = util.GenUUID()
	cl.c = c
	cl.wch = make(chan []byte, 16)
	cl.done = make(chan struct{})
	cl.logger = logger.With().Str("subscriber", cl.name).Logger()
	return cl
}

func (cl *Client) Name() string {
	return cl.name
}

func (cl *Client) Closed() bool {
	return atomic.LoadUint32(&cl.closed) == 1
}

func (cl *Client) Push(d []byte) error {
	if cl.Closed() {
		return errClientClosed
	}
	select {
	case cl.wch <- d:
		atomic.AddUint64(&cl.pushed, 1)
	default:
		atomic.AddUint64(&cl.skipped, 1)
	}
	return nil
}

func (cl *Client) closeErr(err error) {
	if atomic.CompareAndSwapUint32(&cl.closed, 0, 1) {
		close(cl.done)
		cl.c.Close(websocket.StatusNormalClosure, "")
		cl.logger.Debug().Err(err).Uint64("pushed", atomic.LoadUint64(&cl.pushed)).Uint64("skipped", atomic.LoadUint64(&cl.skipped)).Msg("client closed")
	}
}

func (cl *Client) run(ctx context.Context) {
	go cl.readloop(ctx)
	for {
		select {
		case d := <-cl.wch:
			err := cl.c.Write(ctx, websocket.MessageText, d)
			if err != nil {
				cl.closeErr(err)
				return
			}
		case <-cl.done:
			return
		case <-ctx.Done():
			cl.closeErr(ctx.Err())
			return
		}
	}
}

// readloop only detects the peer going away, clients send nothing of
// interest after the upgrade.
func (cl *Client) readloop(ctx context.Context) {
	for {
		_, _, err := cl.c.Read(ctx)
		if err != nil {
			cl.closeErr(err)
			return
		}
	}
}

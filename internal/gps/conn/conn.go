package conn

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
)

// Conn wraps an accepted device connection with a buffered reader for
// delimiter framing and the socket tuple for logging.
type Conn struct {
	cid     uint64
	tuple   []string
	created time.Time
	closed  uint32
	r       *bufio.Reader
	net.Conn
}

func NewConn(c net.Conn, cid uint64) *Conn {
	sourceip, sourceport, _ := net.SplitHostPort(c.RemoteAddr().String())
	targetip, targetport, _ := net.SplitHostPort(c.LocalAddr().String())

	return &Conn{
		cid:     cid,
		tuple:   []string{sourceip, sourceport, targetip, targetport},
		created: time.Now(),
		r:       bufio.NewReader(c),
		Conn:    c,
	}
}

// ReadRecord accumulates bytes until delim, so records split or coalesced
// by the transport are still framed correctly.
func (c *Conn) ReadRecord(delim byte) (string, error) {
	return c.r.ReadString(delim)
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *Conn) Close() error {
	atomic.StoreUint32(&c.closed, 1)
	return c.Conn.Close()
}

func (c *Conn) Closed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}

func (c *Conn) Cid() uint64 {
	return c.cid
}

func (c *Conn) Created() time.Time {
	return c.created
}

func (c *Conn) MarshalObject(e *log.Entry) {
	e.Strs("socket", c.tuple).Uint64("cid", c.cid)
}

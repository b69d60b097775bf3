// Package network provides listener wrappers for the portal web server.
package network

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// tlsHandshake is the record type that opens every TLS connection.
const tlsHandshake = 0x16

// NewRedirectListener wraps a listener that serves TLS so that plain HTTP
// requests arriving on the same port get a redirect to the https URL.
// It must sit below the tls listener.
func NewRedirectListener(listener net.Listener) net.Listener {
	return &redirectListener{Listener: listener}
}

type redirectListener struct {
	net.Listener
}

func (l *redirectListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &redirectConn{Conn: conn, r: bufio.NewReader(conn)}, nil
}

type redirectConn struct {
	net.Conn
	r     *bufio.Reader
	once  sync.Once
	plain bool
}

// detect peeks at the first byte. Anything but a TLS handshake is answered
// with a redirect and the connection is closed.
func (c *redirectConn) detect() {
	b, err := c.r.Peek(1)
	if err != nil || b[0] == tlsHandshake {
		return
	}
	c.plain = true
	defer c.Conn.Close()

	_ = c.Conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	req, err := http.ReadRequest(c.r)
	if err != nil {
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
	}
	resp.Header.Set("Location", "https://"+req.Host+req.RequestURI)
	resp.Header.Set("Connection", "close")
	_ = resp.Write(c.Conn)
}

func (c *redirectConn) Read(buf []byte) (int, error) {
	c.once.Do(c.detect)
	if c.plain {
		return 0, io.EOF
	}
	return c.r.Read(buf)
}

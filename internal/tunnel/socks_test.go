package tunnel

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveSOCKS5 accepts no-auth CONNECT requests on 'ln' and relays them.
func serveSOCKS5(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			_ = socks5Relay(conn)
		}()
	}
}

func socks5Relay(conn net.Conn) error {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return err
	}
	if _, err := io.ReadFull(conn, make([]byte, hdr[1])); err != nil {
		return err
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return err
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return err
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return err
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return err
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return err
		}
		host = string(name)
	default:
		return fmt.Errorf("unsupported address type %d", req[3])
	}
	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return err
	}
	port := binary.BigEndian.Uint16(portBytes)

	upstream, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return err
	}
	defer upstream.Close()
	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return err
	}

	go func() { _, _ = io.Copy(upstream, conn) }()
	_, _ = io.Copy(conn, upstream)
	return nil
}

func TestExitAddress(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "198.51.100.77")
	}))
	defer echo.Close()

	orig := exitIPEndpoint
	exitIPEndpoint = echo.URL
	t.Cleanup(func() { exitIPEndpoint = orig })

	ln, port := listen(t)
	go serveSOCKS5(ln)

	addr, err := New().ExitAddress(t.Context(), port)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.77", addr)
}

func TestExitAddressUnexpectedBody(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "<html>captive portal</html>")
	}))
	defer echo.Close()

	orig := exitIPEndpoint
	exitIPEndpoint = echo.URL
	t.Cleanup(func() { exitIPEndpoint = orig })

	ln, port := listen(t)
	go serveSOCKS5(ln)

	_, err := New().ExitAddress(t.Context(), port)
	assert.ErrorIs(t, err, ErrExitLookup)
}

func TestExitAddressNoProxy(t *testing.T) {
	ln, port := listen(t)
	require.NoError(t, ln.Close())

	_, err := New().ExitAddress(t.Context(), port)
	assert.ErrorIs(t, err, ErrExitLookup)
}

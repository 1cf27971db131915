package mllp

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameUnframe(t *testing.T) {
	payload := []byte("MSH|^~\\&|A|B")
	framed := Frame(payload)

	assert.Equal(t, byte(StartBlock), framed[0])
	assert.Equal(t, byte(EndBlock), framed[len(framed)-2])
	assert.Equal(t, byte(CarriageReturn), framed[len(framed)-1])

	got, err := Unframe(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUnframeErrors(t *testing.T) {
	_, err := Unframe([]byte("no framing"))
	assert.ErrorIs(t, err, ErrInvalidStartBlock)

	_, err = Unframe([]byte{StartBlock, 'x', 'y'})
	assert.ErrorIs(t, err, ErrInvalidEndBlock)

	_, err = Unframe([]byte{})
	assert.ErrorIs(t, err, ErrInvalidStartBlock)
}

func TestReadMessage(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(Frame([]byte("payload"))))
	got, err := ReadMessage(r, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestReadMessageToleratesMissingTrailingCR(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{StartBlock, 'h', 'i', EndBlock}))
	got, err := ReadMessage(r, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}

func TestReadMessageRejectsUnframedStream(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("plain text")))
	_, err := ReadMessage(r, 0)
	assert.ErrorIs(t, err, ErrInvalidStartBlock)
}

// ackServer accepts one connection, reads one framed message, and replies
// with the given response bytes.
func ackServer(t *testing.T, respond []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ReadMessage(bufio.NewReader(conn), 0); err != nil {
			return
		}
		_, _ = conn.Write(respond)
	}()

	return ln.Addr().String()
}

func TestClientExchange(t *testing.T) {
	ack := []byte("MSH|^~\\&|RCVR\rMSA|AA|MSG0001")
	addr := ackServer(t, Frame(ack))

	c := &Client{Timeout: 5 * time.Second}
	resp, err := c.Exchange(context.Background(), addr, []byte("MSH|^~\\&|SNDR"))
	require.NoError(t, err)
	assert.Equal(t, ack, resp)
}

func TestClientExchangeProtocolError(t *testing.T) {
	addr := ackServer(t, []byte("HTTP/1.1 400 Bad Request\r\n\r\n"))

	c := &Client{Timeout: 5 * time.Second}
	_, err := c.Exchange(context.Background(), addr, []byte("MSH|^~\\&"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestClientExchangeConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close()) // nothing listens here any more

	c := &Client{Timeout: 2 * time.Second}
	_, err = c.Exchange(context.Background(), addr, []byte("MSH|^~\\&"))
	assert.ErrorIs(t, err, ErrConnect)
}

func TestClientExchangeTimeout(t *testing.T) {
	// A server that accepts but never replies.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(3 * time.Second)
	}()

	c := &Client{Timeout: 200 * time.Millisecond}
	_, err = c.Exchange(context.Background(), ln.Addr().String(), []byte("MSH|^~\\&"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClientExchangeCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(3 * time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	c := &Client{Timeout: 10 * time.Second}
	start := time.Now()
	_, err = c.Exchange(ctx, ln.Addr().String(), []byte("MSH|^~\\&"))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt the read")
}

package ctxio

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadFull_ReadsExactly(t *testing.T) {
	r := bytes.NewReader([]byte("hello world"))
	buf := make([]byte, 5)
	n, err := ReadFull(context.Background(), r, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestReadFull_CancelledContext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := make([]byte, 5)
	_, err := ReadFull(ctx, client, buf)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRead_SingleShortRead(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("abc"))
	}()

	buf := make([]byte, 10)
	n, err := Read(context.Background(), pr, buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf[:n]))
}

func TestWrite_WritesFull(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(context.Background(), &buf, []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, len("payload"), n)
	require.Equal(t, "payload", buf.String())
}

func TestRun_ContextDoneBeforeStart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	var buf bytes.Buffer
	_, err := Write(ctx, &buf, []byte("x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

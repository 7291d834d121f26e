package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
	"github.com/pg-sharding/ringkv/pkg/protocol"
)

// ErrFrameTooLong is returned by ReadFrame for a frame longer than
// protocol.MaxFrameSize. The frame is consumed, the connection stays usable.
var ErrFrameTooLong = kverror.New(kverror.KV_PROTOCOL, fmt.Sprintf("frame exceeds %d bytes", protocol.MaxFrameSize))

// LineConn frames a stream connection into newline terminated frames.
// It is not safe for concurrent use.
type LineConn struct {
	raw    net.Conn
	reader *bufio.Reader
}

func New(raw net.Conn) *LineConn {
	return &LineConn{raw: raw, reader: bufio.NewReaderSize(raw, 4096)}
}

// Dial opens a connection to addr honoring ctx for the connect phase.
func Dial(ctx context.Context, addr string) (*LineConn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, kverror.Newf(kverror.KV_CONNECTION_ERROR, "dial %s: %s", addr, err)
	}
	return New(raw), nil
}

func (c *LineConn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *LineConn) Close() error {
	return c.raw.Close()
}

// bind applies ctx to the socket: its deadline becomes the I/O deadline and
// cancellation interrupts blocked I/O. The returned func detaches it.
func (c *LineConn) bind(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.raw.SetDeadline(deadline)
	} else {
		_ = c.raw.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.raw.SetDeadline(time.Now())
	})
	return func() { stop() }
}

// ReadFrame returns the next frame without its line terminator. A final
// frame without terminator is returned before io.EOF.
func (c *LineConn) ReadFrame(ctx context.Context) (string, error) {
	defer c.bind(ctx)()

	var frame []byte
	tooLong := false
	for {
		chunk, err := c.reader.ReadSlice('\n')
		size := len(frame) + len(chunk)
		if err == nil {
			size--
		}
		if !tooLong && size > protocol.MaxFrameSize {
			tooLong, frame = true, nil
		}
		if !tooLong {
			frame = append(frame, chunk...)
		}

		switch {
		case err == nil:
			if tooLong {
				return "", ErrFrameTooLong
			}
			return strings.TrimSuffix(string(frame[:len(frame)-1]), "\r"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return "", ErrFrameTooLong
			}
			if len(frame) == 0 {
				return "", io.EOF
			}
			return strings.TrimSuffix(string(frame), "\r"), nil
		default:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
	}
}

func (c *LineConn) WriteFrame(ctx context.Context, frame string) error {
	defer c.bind(ctx)()

	_, err := c.raw.Write([]byte(frame + "\n"))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Roundtrip sends one request frame and waits for its response.
func (c *LineConn) Roundtrip(ctx context.Context, frame string) (*protocol.Response, error) {
	if err := c.WriteFrame(ctx, frame); err != nil {
		return nil, err
	}
	line, err := c.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.ParseResponse(line)
}

// Do runs a single request over a dedicated connection to addr.
func Do(ctx context.Context, addr string, frame string) (*protocol.Response, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Roundtrip(ctx, frame)
}

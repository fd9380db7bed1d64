package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	maxLineBytes = 16 * 1024
	writeTimeout = 10 * time.Second
)

// ErrMalformedInput marks input a transport skipped. The connection stays usable and the
// next ReadLine continues after it.
var ErrMalformedInput = errors.New("malformed input")

// Conn carries protocol lines. ReadLine blocks until a full line arrives or the connection
// fails; Close unblocks it. Errors wrapping ErrMalformedInput are not fatal.
type Conn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}

// lineConn speaks the newline-delimited protocol over a stream socket.
type lineConn struct {
	c net.Conn
	r *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
}

func NewLineConn(c net.Conn) Conn {
	return &lineConn{c: c, r: bufio.NewReaderSize(c, 4096), w: bufio.NewWriter(c)}
}

// ReadLine returns the next line without its terminator. A line longer than maxLineBytes
// is consumed up to its newline and reported as malformed.
func (l *lineConn) ReadLine(_ context.Context) (string, error) {
	var buf []byte
	tooLong := false
	for {
		frag, err := l.r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, frag...)
			if len(buf) > maxLineBytes+2 {
				tooLong, buf = true, nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return "", err
		}
		break
	}
	if tooLong {
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedInput, maxLineBytes)
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}

func (l *lineConn) WriteLine(ctx context.Context, line string) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	_ = l.c.SetWriteDeadline(deadline)
	if _, err := l.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *lineConn) Close() error       { return l.c.Close() }
func (l *lineConn) RemoteAddr() string { return l.c.RemoteAddr().String() }

// Package tcp dials a host:port carrying raw NMEA/AIS sentences and
// reconnects with backoff, grounded on the teacher's controller-reconnect
// patterns (internal/actuators).
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// Source dials addr and streams newline-delimited sentences, reconnecting
// with exponential backoff on failure until ctx is cancelled.
type Source struct {
	addr   string
	logger *logrus.Logger
}

func New(addr string, logger *logrus.Logger) *Source {
	return &Source{addr: addr, logger: logger}
}

func (s *Source) Frames(ctx context.Context) <-chan string {
	out := make(chan string, 256)
	go func() {
		defer close(out)
		backoff := initialBackoff
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
			if err != nil {
				s.logger.WithError(err).WithField("addr", s.addr).Warn("tcp: dial failed, retrying")
				if !sleepOrDone(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = initialBackoff

			s.logger.WithField("addr", s.addr).Info("tcp: connected")
			s.stream(ctx, conn, out)
			conn.Close()
		}
	}()
	return out
}

func (s *Source) stream(ctx context.Context, conn net.Conn, out chan<- string) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case out <- scanner.Text():
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Package replay feeds recorded NMEA/AIS sentences from a log file,
// line-by-line, for offline testing and the "replay" data mode of §6.7.
package replay

import (
	"bufio"
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Source reads sentences from a file and emits them on a channel, one line
// at a time, closing the channel when the file is exhausted or ctx is
// cancelled.
type Source struct {
	path   string
	logger *logrus.Logger
}

func New(path string, logger *logrus.Logger) *Source {
	return &Source{path: path, logger: logger}
}

// Frames opens the file and streams its lines; errors opening the file are
// logged and the returned channel is closed immediately.
func (s *Source) Frames(ctx context.Context) <-chan string {
	out := make(chan string, 256)
	go func() {
		defer close(out)
		f, err := os.Open(s.path)
		if err != nil {
			s.logger.WithError(err).WithField("path", s.path).Error("replay: failed to open source file")
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case out <- scanner.Text():
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.WithError(err).Warn("replay: scan error")
		}
	}()
	return out
}

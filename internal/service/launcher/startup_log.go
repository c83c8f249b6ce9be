package launcher

import (
	"bytes"
	"context"
	"sync"
	"unicode/utf8"

	"github.com/oshokin/deploy-manager/internal/logger"
)

// startupLog keeps the most recent limit bytes of child output until it is
// closed. Writes come from the exec copy goroutines, reads from the launcher.
type startupLog struct {
	ctx    context.Context //nolint:containedctx // Only used to log mirrored lines.
	limit  int
	mirror bool

	mu      sync.Mutex
	buf     []byte
	pending []byte
	closed  bool
}

func newStartupLog(ctx context.Context, limit int, mirror bool) *startupLog {
	return &startupLog{ctx: ctx, limit: limit, mirror: mirror}
}

// Write implements io.Writer and never fails.
func (s *startupLog) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return len(p), nil
	}

	s.buf = append(s.buf, p...)
	if s.limit > 0 && len(s.buf) > s.limit {
		s.buf = append([]byte(nil), tail(s.buf, s.limit)...)
	}

	if s.mirror {
		s.mirrorLines(p)
	}

	return len(p), nil
}

// mirrorLines logs every complete line; a trailing partial line waits for the next write.
func (s *startupLog) mirrorLines(p []byte) {
	s.pending = append(s.pending, p...)

	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}

		line := bytes.TrimRight(s.pending[:i], "\r")
		if len(line) > 0 {
			logger.DebugKV(s.ctx, "Payload output", "line", string(line))
		}

		s.pending = s.pending[i+1:]
	}

	if s.limit > 0 && len(s.pending) > s.limit {
		s.pending = nil
	}
}

// tail returns at most limit trailing bytes of b, starting on a rune boundary.
func tail(b []byte, limit int) []byte {
	start := len(b) - limit
	for start < len(b) && !utf8.RuneStart(b[start]) {
		start++
	}

	return b[start:]
}

// Close stops capturing and mirroring and returns the captured output.
// Later writes are accepted and dropped so the child never blocks on its output.
func (s *startupLog) Close() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.pending = nil

	return string(s.buf)
}

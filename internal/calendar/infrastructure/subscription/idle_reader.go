package subscription

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// idleReader cancels the request with ErrIdleTimeout when no bytes arrive
// for timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelCauseFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.fired.Store(true)
		cancel(ErrIdleTimeout)
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop()         { ir.timer.Stop() }
func (ir *idleReader) expired() bool { return ir.fired.Load() }

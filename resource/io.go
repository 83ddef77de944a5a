package resource

import (
	"context"
	"io"
)

// Writer returns w throttled by the IO limit. Without a limit w is returned
// as is. ctx bounds every wait.
func (c *Controller) Writer(ctx context.Context, w io.Writer) io.Writer {
	if !c.IOLimited() {
		return w
	}
	return &throttledWriter{ctx: ctx, w: w, c: c}
}

// Reader is the read-side counterpart of Writer. Bytes are charged after
// they arrive, so a read never blocks before data is available.
func (c *Controller) Reader(ctx context.Context, r io.Reader) io.Reader {
	if !c.IOLimited() {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, c: c}
}

type throttledWriter struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.c.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

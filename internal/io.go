package internal

import (
	"context"
	"fmt"
	"io"
)

// Sizer implements io.Writer that tallies that number of bytes written.
type Sizer struct {
	Size int64
}

func (s *Sizer) Write(p []byte) (n int, err error) {
	n = len(p)
	s.Size += int64(n)
	return
}

// CopyBufferWithContext is a context-cancellable variant of io.CopyBuffer: the context is
// checked for done status after every write, so a caller piping a long-running download into an
// extraction loop can abort promptly instead of waiting for the next short read/write pair.
//
// If buf is nil, a new 32KiB buffer is allocated.
func CopyBufferWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (err error) {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	var nr, nw int
	for {
		nr, err = src.Read(buf)

		if nr > 0 {
			switch nw, err = dst.Write(buf[0:nr]); {
			case err != nil:
				return err
			case nw < nr:
				return io.ErrShortWrite
			case nr != nw:
				return fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

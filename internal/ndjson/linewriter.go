package ndjson

// LineWriter adapts a Demux to io.Writer, invoking fn once per complete
// line. It lets the relay observe the NDJSON stream it forwards without a
// second copy of the split logic.
type LineWriter struct {
	d  Demux
	fn func(line string)
}

// NewLineWriter returns a LineWriter calling fn for every complete line.
func NewLineWriter(fn func(line string)) *LineWriter {
	return &LineWriter{fn: fn}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	for _, line := range lw.d.Feed(p) {
		lw.fn(line)
	}
	return len(p), nil
}

// Close drains the trailing fragment, if any, through fn.
func (lw *LineWriter) Close() error {
	if line, ok := lw.d.Flush(); ok {
		lw.fn(line)
	}
	return nil
}

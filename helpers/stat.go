package helpers

import (
	"expvar"
	"io"
)

// StatReader counts bytes read into V.
// Overhead is added per successful non-empty read, estimate of transport framing.
type StatReader struct {
	R        io.Reader
	V        *expvar.Int
	Overhead int64
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, v *expvar.Int, overhead int64) io.Reader {
	return &StatReader{R: r, V: v, Overhead: overhead}
}

func (sr *StatReader) Read(p []byte) (int, error) {
	n, err := sr.R.Read(p)
	countIO(sr.V, n, sr.Overhead)
	return n, err
}

// StatWriter counts bytes written into V, same rules as StatReader.
type StatWriter struct {
	W        io.Writer
	V        *expvar.Int
	Overhead int64
}

var _ io.Writer = &StatWriter{}

func NewStatWriter(w io.Writer, v *expvar.Int, overhead int64) io.Writer {
	return &StatWriter{W: w, V: v, Overhead: overhead}
}

func (sw *StatWriter) Write(p []byte) (int, error) {
	n, err := sw.W.Write(p)
	countIO(sw.V, n, sw.Overhead)
	return n, err
}

func countIO(v *expvar.Int, n int, overhead int64) {
	if n > 0 {
		v.Add(int64(n) + overhead)
	}
}

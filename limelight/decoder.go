package limelight

import (
	"bufio"
	"io"

	"github.com/juju/errors"
)

// Decoder reads back to back messages from a stream.
// It never reads past the end of current message, so the same
// bufio.Reader may be shared with other consumers between Read calls.
type Decoder struct {
	r   *bufio.Reader
	buf []byte
}

func NewDecoder(r io.Reader) *Decoder {
	d := &Decoder{}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d.Attach(br)
	return d
}

func (d *Decoder) Attach(r *bufio.Reader) {
	d.r = r
	if d.buf == nil {
		d.buf = make([]byte, 0, BayBoardValues*valueSize+16)
	}
}

// Read returns io.EOF only on clean end of stream before next message.
// After any other error stream position is undefined, caller should drop the connection.
func (d *Decoder) Read() (Message, error) {
	head, err := d.r.Peek(1)
	switch err {
	case nil:
	case io.EOF:
		return nil, io.EOF
	default:
		return nil, errors.Annotate(err, "header")
	}
	// don't block for second byte unless tag needs it, heartbeat is single byte
	if Tag(head[0]) == TagTelemetry {
		if head, err = d.r.Peek(2); err != nil && err != io.EOF {
			return nil, errors.Annotate(err, "header")
		}
	}

	size, err := sizeFromHead(head)
	if err != nil {
		return nil, err
	}

	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	buf := d.buf[:size]
	if _, err = io.ReadFull(d.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Annotatef(ErrTruncated, "%s need=%d", Tag(buf[0]), size)
		}
		return nil, errors.Annotate(err, "readfull")
	}
	return decodeExact(buf)
}

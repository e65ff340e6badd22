package join

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/wbrown/janus-join/relation"
)

// Compression selects the codec of spill files.
type Compression string

const (
	NoCompression Compression = "none"
	Snappy        Compression = "snappy"
	Zstd          Compression = "zstd"
	LZ4           Compression = "lz4"
)

type codec struct {
	newWriter func(io.Writer) (io.WriteCloser, error)
	newReader func(io.Reader) (io.ReadCloser, error)
}

var codecs = map[Compression]codec{
	NoCompression: {
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	},
	Snappy: {
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return snappy.NewBufferedWriter(w), nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(snappy.NewReader(r)), nil },
	},
	Zstd: {
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) },
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
	LZ4: {
		newWriter: func(w io.Writer) (io.WriteCloser, error) { return lz4.NewWriter(w), nil },
		newReader: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(r)), nil },
	},
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// countingWriter counts the bytes reaching the file.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// spillWriter appends working rows to a spill file. Each row is the
// relation row encoding prefixed with its uvarint length.
type spillWriter struct {
	path  string
	file  *os.File
	count *countingWriter
	buf   *bufio.Writer
	codec io.WriteCloser
	enc   []byte
	rows  int64
}

func createSpill(path string, c Compression) (*spillWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create spill file: %w", err)
	}
	count := &countingWriter{w: f}
	buf := bufio.NewWriter(count)
	cw, err := codecs[c].newWriter(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to start %s spill file %s: %w", c, path, err)
	}
	return &spillWriter{path: path, file: f, count: count, buf: buf, codec: cw}, nil
}

func (w *spillWriter) write(row relation.Row) error {
	var err error
	w.enc, err = relation.AppendRow(w.enc[:0], row)
	if err != nil {
		return fmt.Errorf("failed to encode row %s for %s: %w", row.Key, w.path, err)
	}
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(w.enc)))
	if _, err := w.codec.Write(prefix[:n]); err != nil {
		return fmt.Errorf("failed to write spill file %s: %w", w.path, err)
	}
	if _, err := w.codec.Write(w.enc); err != nil {
		return fmt.Errorf("failed to write spill file %s: %w", w.path, err)
	}
	w.rows++
	return nil
}

// close flushes and closes the file, returning the bytes written.
func (w *spillWriter) close() (int64, error) {
	err := w.codec.Close()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return w.count.n, fmt.Errorf("failed to close spill file %s: %w", w.path, err)
	}
	return w.count.n, nil
}

// spillReader iterates the rows of a closed spill file.
type spillReader struct {
	path  string
	file  *os.File
	codec io.ReadCloser
	in    *bufio.Reader
	data  []byte
	row   relation.Row
	err   error
}

var _ relation.RowIterator = (*spillReader)(nil)

func openSpill(path string, c Compression) (*spillReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file: %w", err)
	}
	cr, err := codecs[c].newReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read %s spill file %s: %w", c, path, err)
	}
	return &spillReader{path: path, file: f, codec: cr, in: bufio.NewReader(cr)}, nil
}

func (r *spillReader) Next() bool {
	if r.err != nil {
		return false
	}
	size, err := binary.ReadUvarint(r.in)
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("failed to read spill file %s: %w", r.path, err)
		return false
	}
	if uint64(cap(r.data)) < size {
		r.data = make([]byte, size)
	}
	r.data = r.data[:size]
	if _, err := io.ReadFull(r.in, r.data); err != nil {
		r.err = fmt.Errorf("truncated spill file %s: %w", r.path, err)
		return false
	}
	r.row, err = relation.DecodeRow(r.data)
	if err != nil {
		r.err = fmt.Errorf("corrupt spill file %s: %w", r.path, err)
		return false
	}
	return true
}

func (r *spillReader) Row() relation.Row { return r.row }

func (r *spillReader) Err() error { return r.err }

func (r *spillReader) Close() error {
	err := r.codec.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

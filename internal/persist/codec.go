// Package persist reads and writes the class index state file.
//
// The file is a gzip stream holding a magic string and format version, the
// index as length-prefixed strings in sorted key order, and an xxhash64 of
// everything before it. Encoding the same index always yields the same
// payload.
package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/standardbeagle/arabica/internal/classindex"
)

// FormatVersion is written after the magic.
const FormatVersion byte = 1

const (
	magic        = "ARABICA"
	headerLen    = len(magic) + 1
	checksumLen  = 8
	maxStringLen = 1 << 16 // fully-qualified class names are far shorter
)

// Sentinel errors for state files that cannot be decoded
var (
	ErrBadMagic           = errors.New("not an arabica state file")
	ErrUnsupportedVersion = errors.New("unsupported state file version")
	ErrChecksum           = errors.New("state file checksum mismatch")
	ErrCorrupt            = errors.New("corrupt state file")
)

// Encode writes idx to w as a gzip stream at the given compression level.
func Encode(w io.Writer, idx *classindex.Index, level int) error {
	payload := encodePayload(idx)

	var sum [checksumLen]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(payload))

	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := gz.Write(payload); err != nil {
		gz.Close()
		return err
	}
	if _, err := gz.Write(sum[:]); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func encodePayload(idx *classindex.Index) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + idx.Count()*48)

	buf.WriteString(magic)
	buf.WriteByte(FormatVersion)

	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v int) {
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
	}
	putString := func(s string) {
		putUvarint(len(s))
		buf.WriteString(s)
	}

	putUvarint(idx.Len())
	idx.Each(func(short string, names []string) {
		putString(short)
		putUvarint(len(names))
		for _, n := range names {
			putString(n)
		}
	})
	return buf.Bytes()
}

// Decode reads an index written by Encode and re-checks that every name is
// stored under its own short name.
func Decode(r io.Reader) (*classindex.Index, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		if errors.Is(err, gzip.ErrHeader) {
			return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if len(data) < headerLen || string(data[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}
	if v := data[len(magic)]; v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	if len(data) < headerLen+checksumLen {
		return nil, fmt.Errorf("%w: missing checksum", ErrCorrupt)
	}

	payload := data[:len(data)-checksumLen]
	want := binary.LittleEndian.Uint64(data[len(payload):])
	if got := xxhash.Sum64(payload); got != want {
		return nil, fmt.Errorf("%w: got %016x, want %016x", ErrChecksum, got, want)
	}

	return decodePayload(payload[headerLen:])
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() int {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 || v > uint64(len(d.buf)) {
		// Every count and length is bounded by the bytes that follow it.
		d.err = fmt.Errorf("%w: bad length prefix", ErrCorrupt)
		return 0
	}
	d.buf = d.buf[n:]
	return int(v)
}

func (d *decoder) string() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > maxStringLen || n > len(d.buf) {
		d.err = fmt.Errorf("%w: string length %d", ErrCorrupt, n)
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func decodePayload(body []byte) (*classindex.Index, error) {
	d := &decoder{buf: body}
	idx := classindex.New()

	keys := d.uvarint()
	for i := 0; i < keys && d.err == nil; i++ {
		short := d.string()
		size := d.uvarint()
		if d.err != nil {
			break
		}
		if size == 0 {
			return nil, fmt.Errorf("%w: empty set for %q", ErrCorrupt, short)
		}
		if idx.Lookup(short) != nil {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrCorrupt, short)
		}

		names := make([]string, 0, size)
		for j := 0; j < size && d.err == nil; j++ {
			names = append(names, d.string())
		}
		if d.err != nil {
			break
		}
		if err := idx.Put(short, names); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.buf))
	}
	return idx, nil
}

package blob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = ErrTruncated
	}
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Header describes a single entry as found while reading a blob
type Header struct {
	Name string
	Size uint32

	// Offset is the position of the name length byte relative to the start
	// of the blob
	Offset int64
}

// Reader walks the entries of a blob in the same way as the emulator, using
// the size of each entry to skip over any payload that isn't read.
type Reader struct {
	r    *countingReader
	cur  *io.LimitedReader
	done bool
}

// NewReader checks the marker at the start of r and returns a Reader
// positioned at the first entry
func NewReader(r io.Reader) (*Reader, error) {
	cr := &countingReader{r: r}

	var magic [len(Magic)]byte
	if _, err := io.ReadFull(cr, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrBadMagic
		}
		return nil, err
	}
	if string(magic[:]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic[:])
	}

	return &Reader{r: cr}, nil
}

func (r *Reader) skip() error {
	if r.cur == nil {
		return nil
	}
	if _, err := io.Copy(ioutil.Discard, r.cur); err != nil {
		return err
	}
	if r.cur.N > 0 {
		return ErrTruncated
	}
	r.cur = nil
	return nil
}

// Next advances to the next entry, discarding any unread payload of the
// current one. It returns io.EOF once the terminator has been reached.
func (r *Reader) Next() (*Header, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := r.skip(); err != nil {
		return nil, err
	}

	offset := r.r.n

	var length [1]byte
	if err := readFull(r.r, length[:]); err != nil {
		return nil, err
	}
	if length[0] == terminator {
		r.done = true
		return nil, io.EOF
	}

	b := make([]byte, int(length[0])+sizeLength)
	if err := readFull(r.r, b); err != nil {
		return nil, err
	}

	h := &Header{
		Name:   string(b[:length[0]]),
		Size:   binary.LittleEndian.Uint32(b[length[0]:]),
		Offset: offset,
	}
	r.cur = &io.LimitedReader{R: r.r, N: int64(h.Size)}

	return h, nil
}

// Read reads from the payload of the current entry
func (r *Reader) Read(p []byte) (int, error) {
	if r.cur == nil {
		return 0, io.EOF
	}
	n, err := r.cur.Read(p)
	if err == io.EOF && r.cur.N > 0 {
		err = ErrTruncated
	}
	return n, err
}

// Aux returns the keymap data following the terminator. It can only be
// called once Next has returned io.EOF.
func (r *Reader) Aux() ([]byte, error) {
	if !r.done {
		return nil, errors.New("blob: entries not fully read")
	}
	return ioutil.ReadAll(r.r)
}

// Entry is a single decoded entry
type Entry struct {
	Header
	Payload []byte
}

// Blob is a fully decoded blob. It implements the encoding.BinaryMarshaler
// and encoding.BinaryUnmarshaler interfaces.
type Blob struct {
	Entries []Entry
	Aux     []byte
}

// Decode parses b as a complete blob
func Decode(b []byte) (*Blob, error) {
	blob := new(Blob)
	if err := blob.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return blob, nil
}

// UnmarshalBinary decodes the blob from binary form
func (b *Blob) UnmarshalBinary(data []byte) error {
	br := bytes.NewReader(data)
	r, err := NewReader(br)
	if err != nil {
		return err
	}

	b.Entries = nil
	b.Aux = nil

	for {
		h, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		// The size comes from the input so it can't be trusted
		if int64(h.Size) > int64(br.Len()) {
			return fmt.Errorf("%w: %s claims %d bytes, %d left", ErrTruncated, h.Name, h.Size, br.Len())
		}

		payload := make([]byte, h.Size)
		if err := readFull(r, payload); err != nil {
			return err
		}
		b.Entries = append(b.Entries, Entry{Header: *h, Payload: payload})
	}

	aux, err := r.Aux()
	if err != nil {
		return err
	}
	b.Aux = aux

	return nil
}

// MarshalBinary encodes the blob into binary form. Entry names are written
// as they are, the offsets in each Header are ignored.
func (b *Blob) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	for _, e := range b.Entries {
		if err := w.WriteEntry(e.Name, int64(len(e.Payload)), bytes.NewReader(e.Payload)); err != nil {
			return nil, err
		}
	}
	if err := w.Finish(b.Aux); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Find returns the offset of the first marker in a flash image, looking only
// at multiples of alignment as the emulator does
func Find(image []byte, alignment int) (int, error) {
	if alignment <= 0 {
		return 0, fmt.Errorf("blob: invalid alignment %d", alignment)
	}
	for off := 0; off+len(Magic) <= len(image); off += alignment {
		if string(image[off:off+len(Magic)]) == Magic {
			return off, nil
		}
	}
	return 0, ErrNotFound
}

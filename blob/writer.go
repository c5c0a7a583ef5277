package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer streams a blob to an underlying io.Writer. The marker is written
// before the first entry, entries are written in the order they are given
// and Finish writes the terminator and the keymap data.
type Writer struct {
	w        io.Writer
	started  bool
	finished bool
}

// NewWriter returns a Writer that writes the blob to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func checkName(name string) error {
	switch {
	case len(name) == 0:
		return ErrEmptyName
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, name, len(name))
	}
	return nil
}

func checkSize(name string, size int64) error {
	if size < 0 || size > MaxSize {
		return fmt.Errorf("%w: %q is %d bytes", ErrAssetTooLarge, name, size)
	}
	return nil
}

func (w *Writer) start() error {
	if w.finished {
		return ErrFinished
	}
	if w.started {
		return nil
	}
	if _, err := io.WriteString(w.w, Magic); err != nil {
		return err
	}
	w.started = true
	return nil
}

// WriteEntry writes a single entry with the given name, copying exactly size
// bytes of payload from r. The name and size are validated before anything
// is written.
func (w *Writer) WriteEntry(name string, size int64, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := checkSize(name, size); err != nil {
		return err
	}

	if err := w.start(); err != nil {
		return err
	}

	header := make([]byte, 0, 1+len(name)+sizeLength)
	header = append(header, byte(len(name)))
	header = append(header, name...)
	header = append(header, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(header[len(header)-sizeLength:], uint32(size))

	if _, err := w.w.Write(header); err != nil {
		return err
	}

	n, err := io.CopyN(w.w, r, size)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: %q has %d of %d bytes", io.ErrUnexpectedEOF, name, n, size)
		}
		return err
	}

	return nil
}

// Finish writes the terminator followed by aux. No further entries can be
// written afterwards.
func (w *Writer) Finish(aux []byte) error {
	if err := w.start(); err != nil {
		return err
	}
	w.finished = true

	if _, err := w.w.Write([]byte{terminator}); err != nil {
		return err
	}
	if _, err := w.w.Write(aux); err != nil {
		return err
	}

	return nil
}

// Encode writes assets to w as a complete blob followed by aux. The assets
// are written in the order given, which is expected to be sorted by
// filename. Every asset is validated before anything is written so a bad
// asset never results in a partial blob.
func Encode(w io.Writer, assets []Asset, aux []byte) error {
	for _, a := range assets {
		name := a.Name()
		if err := checkName(name); err != nil {
			return fmt.Errorf("%s: %w", a.Filename, err)
		}
		if err := checkSize(name, int64(len(a.Payload))); err != nil {
			return fmt.Errorf("%s: %w", a.Filename, err)
		}
	}

	bw := NewWriter(w)
	for _, a := range assets {
		if err := bw.WriteEntry(a.Name(), int64(len(a.Payload)), bytes.NewReader(a.Payload)); err != nil {
			return fmt.Errorf("%s: %w", a.Filename, err)
		}
	}

	return bw.Finish(aux)
}

// Marshal returns the blob for assets and aux as a byte slice
func Marshal(assets []Asset, aux []byte) ([]byte, error) {
	b := new(bytes.Buffer)
	b.Grow(int(Size(assets, len(aux))))
	if err := Encode(b, assets, aux); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// EncodeLegacy writes the payload of every asset back to back with no
// marker, headers, terminator or keymap data. This is the layout used by
// firmware that locates each game through a separately generated table of
// addresses, see package legacy. It must never be mixed with Encode.
func EncodeLegacy(w io.Writer, assets []Asset) error {
	for _, a := range assets {
		if _, err := w.Write(a.Payload); err != nil {
			return fmt.Errorf("%s: %w", a.Filename, err)
		}
	}
	return nil
}

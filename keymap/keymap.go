/*
Package keymap compiles keymap definitions into the binary table that is
appended to the games blob after the terminator.

Each keymap is written as a single byte holding the length of its name, the
name bytes and then a number of three byte rows. A row is normally a GPIO pin
followed by the two Spectrum keys pressed while the pin is held, or one of the
PressAtTick/ReleaseAtTick operations followed by a frame number and the key.
The rows of a keymap are closed with an End row of 0xff 0x00 0x00 and the
table itself is closed with a zero name length. Keymaps are written sorted by
name.

The emulator selects the keymap whose name matches the lowercased game name
and falls back to the keymap named "default".
*/
package keymap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Special values for the first byte of a row
const (
	PressAtTick   = 0xfe
	ReleaseAtTick = 0xfd
	End           = 0xff
)

// Kempston joystick codes
const (
	KempstonFire  = 0x20
	KempstonLeft  = 0x08
	KempstonRight = 0x09
	KempstonDown  = 0x0a
	KempstonUp    = 0x0b
)

const maxNameLength = 1<<8 - 1

var (
	errEmptyName   = errors.New("keymap: empty name")
	errNameTooLong = errors.New("keymap: name too long")
	errBadRow      = errors.New("keymap: invalid row")
	errTruncated   = errors.New("keymap: truncated table")
)

// Row is a single three byte keymap row
type Row [3]byte

// Keymap is a named list of rows, the End row is implied
type Keymap struct {
	Name string
	Rows []Row
}

// Encode writes the keymaps to w sorted by name
func Encode(w io.Writer, keymaps []Keymap) error {
	sorted := make([]Keymap, len(keymaps))
	copy(sorted, keymaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	b := new(bytes.Buffer)
	for _, k := range sorted {
		switch {
		case len(k.Name) == 0:
			return errEmptyName
		case len(k.Name) > maxNameLength:
			return fmt.Errorf("%w: %q", errNameTooLong, k.Name)
		}
		b.WriteByte(byte(len(k.Name)))
		b.WriteString(k.Name)
		for _, r := range k.Rows {
			if r[0] == End {
				return fmt.Errorf("%w: %q has an explicit end row", errBadRow, k.Name)
			}
			b.Write(r[:])
		}
		b.Write([]byte{End, 0, 0})
	}
	b.WriteByte(0)

	_, err := w.Write(b.Bytes())
	return err
}

// Marshal returns the encoded keymaps
func Marshal(keymaps []Keymap) ([]byte, error) {
	b := new(bytes.Buffer)
	if err := Encode(b, keymaps); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode parses a keymap table. Any bytes following the table are ignored.
func Decode(b []byte) ([]Keymap, error) {
	var keymaps []Keymap
	for {
		if len(b) < 1 {
			return nil, errTruncated
		}
		n := int(b[0])
		b = b[1:]
		if n == 0 {
			return keymaps, nil
		}
		if len(b) < n {
			return nil, errTruncated
		}
		k := Keymap{Name: string(b[:n])}
		b = b[n:]
		for {
			if len(b) < len(Row{}) {
				return nil, errTruncated
			}
			var r Row
			copy(r[:], b)
			b = b[len(r):]
			if r[0] == End {
				break
			}
			k.Rows = append(k.Rows, r)
		}
		keymaps = append(keymaps, k)
	}
}

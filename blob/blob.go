/*
Package blob implements the games blob that is written to the flash of the
emulator.

The emulator has no filesystem and no index of what has been flashed, it
looks for the blob by checking for a 16 byte marker at every 4096 byte
boundary of the flash and then walks the entries one by one.

The blob is written as the marker, followed by one entry per game. Each entry
is a single byte holding the length of the name, the name bytes, the size of
the snapshot as a 32-bit little endian value and finally the snapshot data
itself. A name length of zero terminates the list of entries and everything
after that is the keymap data, copied verbatim with no length prefix.

Names are stored as the raw UTF-8 bytes of the Go string with no terminator,
so a name is limited to 255 bytes and can never be empty.
*/
package blob

import (
	"errors"
	"path/filepath"
	"strings"
)

const (
	// Magic is the marker written at the very start of the blob
	Magic = "ZX2040GAMESBLOB1"

	// MaxNameLength is the longest name that fits in the length byte
	MaxNameLength = 1<<8 - 1

	// MaxSize is the largest payload that fits in the size field
	MaxSize = 1<<32 - 1

	// DefaultAlignment is the boundary the emulator scans for the marker
	DefaultAlignment = 4096

	terminator = 0x00
	sizeLength = 4
)

var (
	// ErrNameTooLong is returned when a name does not fit in the length byte
	ErrNameTooLong = errors.New("blob: name too long")
	// ErrEmptyName is returned for a zero length name which is reserved
	// for the terminator
	ErrEmptyName = errors.New("blob: empty name")
	// ErrAssetTooLarge is returned when a payload does not fit in the size
	// field
	ErrAssetTooLarge = errors.New("blob: asset too large")
	// ErrBadMagic is returned when the blob does not start with Magic
	ErrBadMagic = errors.New("blob: bad magic")
	// ErrTruncated is returned when the blob ends in the middle of an entry
	// or before the terminator
	ErrTruncated = errors.New("blob: truncated")
	// ErrNotFound is returned when no marker can be found in a flash image
	ErrNotFound = errors.New("blob: marker not found")
	// ErrFinished is returned when writing to a Writer after Finish
	ErrFinished = errors.New("blob: write after finish")
)

// Asset is a single game snapshot to be stored in the blob
type Asset struct {
	// Filename is the base name of the file the payload was read from
	Filename string
	Payload  []byte
}

// Name returns the name stored in the blob for the asset
func (a Asset) Name() string {
	return Name(a.Filename)
}

// Name derives the entry name from a filename by stripping everything from
// the first '.' onwards. A filename without a '.' is used whole.
func Name(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// Size returns the total length in bytes of the blob that would be produced
// by encoding assets along with auxLen bytes of keymap data
func Size(assets []Asset, auxLen int) int64 {
	n := int64(len(Magic))
	for _, a := range assets {
		n += 1 + int64(len(a.Name())) + sizeLength + int64(len(a.Payload))
	}
	return n + 1 + int64(auxLen)
}

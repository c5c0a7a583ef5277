/*
Package legacy generates the games table used by older emulator firmware.

That firmware expects the snapshots to be flashed back to back with no
headers, see blob.EncodeLegacy, and is compiled with a C header listing the
name, flash address and size of each game along with the keymap to use. The
addresses are only valid for the exact base address the data was flashed to.

The firmware depends on two naming conventions: the displayed name is the
game name with the first letter uppercased and the rest lowercased, and the
keymap is the C symbol keymap_ followed by the lowercased game name, which
must exist in the firmware's keymaps.h. Game names here only drop the last
extension of the filename, so 3dshow.demo.z80 is listed as 3dshow.demo where
the blob format would store 3dshow.
*/
package legacy

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/bodgit/zxgames/blob"
)

// Filename is the header filename expected by the firmware build
const Filename = "games_list.h"

var errOverflow = errors.New("legacy: address overflow")

// Game is a single row of the games table
type Game struct {
	Name    string
	Keymap  string
	Address uint32
	Size    uint32
}

// DisplayName uppercases the first letter of name and lowercases the rest
func DisplayName(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	if n == 0 {
		return name
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(name[n:])
}

// Name returns filename without its last extension
func Name(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// KeymapSymbol returns the C symbol of the keymap used for name
func KeymapSymbol(name string) string {
	return "keymap_" + strings.ToLower(name)
}

// Table computes the table rows for assets flashed back to back starting at
// base
func Table(base uint32, assets []blob.Asset) ([]Game, error) {
	games := make([]Game, 0, len(assets))
	offset := uint64(base)
	for _, a := range assets {
		size := uint64(len(a.Payload))
		if offset+size > blob.MaxSize+1 {
			return nil, fmt.Errorf("%w: %s at %#x", errOverflow, a.Filename, offset)
		}
		name := Name(a.Filename)
		games = append(games, Game{
			Name:    DisplayName(name),
			Keymap:  KeymapSymbol(name),
			Address: uint32(offset),
			Size:    uint32(size),
		})
		offset += size
	}
	return games, nil
}

var header = template.Must(template.New(Filename).Parse(`// Games on the flash memory. Check under the games directory for the
// script that loads the Z80 image files into the flash memory.
struct game_entry {
    const char *name;
    void *addr;         // Address in the flash memory.
    size_t size;        // Length in bytes.
    const uint8_t *map; // Keyboard mapping to use. See keys_config.h.
} GamesTable[] = {
{{- range .}}
    {"{{.Name}}", (void*){{printf "%#x" .Address}}, {{.Size}}, {{.Keymap}}},
{{- end}}
};
`))

// WriteHeader writes the games table as a C header
func WriteHeader(w io.Writer, games []Game) error {
	return header.Execute(w, games)
}

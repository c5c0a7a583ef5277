package keymap

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// DefaultPins maps the button names to the GPIO pins of the reference board
var DefaultPins = map[string]int{
	"left":  7,
	"right": 8,
	"down":  6,
	"up":    9,
	"fire":  22,
}

var namedKeys = map[string]byte{
	"kempston_fire":  KempstonFire,
	"kempston_left":  KempstonLeft,
	"kempston_right": KempstonRight,
	"kempston_down":  KempstonDown,
	"kempston_up":    KempstonUp,
	"enter":          '\r',
	"space":          ' ',
}

var namedOps = map[string]byte{
	"press_at_tick":   PressAtTick,
	"release_at_tick": ReleaseAtTick,
}

type source struct {
	Pins    map[string]int             `yaml:"pins"`
	Keymaps map[string][][]interface{} `yaml:"keymaps"`
}

// Parse reads keymap definitions in YAML form, for example:
//
//	pins:
//	  fire: 22
//	keymaps:
//	  thrust:
//	    - [left, "a", kempston_left]
//	    - [press_at_tick, 10, "n"]
//
// Keys given as bare integers are used as raw key codes, so digit keys must
// be quoted.
func Parse(data []byte) ([]Keymap, error) {
	var src source
	if err := yaml.UnmarshalWithOptions(data, &src, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("keymap: %w", err)
	}

	pins := make(map[string]int, len(DefaultPins)+len(src.Pins))
	for k, v := range DefaultPins {
		pins[k] = v
	}
	for k, v := range src.Pins {
		if v < 0 || v >= ReleaseAtTick {
			return nil, fmt.Errorf("%w: pin %q out of range: %d", errBadRow, k, v)
		}
		pins[strings.ToLower(k)] = v
	}

	keymaps := make([]Keymap, 0, len(src.Keymaps))
	for name, rows := range src.Keymaps {
		k := Keymap{Name: name}
		for i, row := range rows {
			r, err := parseRow(pins, row)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", name, i+1, err)
			}
			k.Rows = append(k.Rows, r)
		}
		keymaps = append(keymaps, k)
	}

	return keymaps, nil
}

// Compile parses YAML keymap definitions and returns the encoded table
func Compile(data []byte) ([]byte, error) {
	keymaps, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Marshal(keymaps)
}

func parseRow(pins map[string]int, row []interface{}) (Row, error) {
	var r Row
	if len(row) != len(r) {
		return r, fmt.Errorf("%w: expected %d values, got %d", errBadRow, len(r), len(row))
	}

	if s, ok := row[0].(string); ok {
		if op, ok := namedOps[strings.ToLower(s)]; ok {
			tick, err := number(row[1])
			if err != nil {
				return r, err
			}
			key, err := parseKey(row[2])
			if err != nil {
				return r, err
			}
			return Row{op, tick, key}, nil
		}
		pin, ok := pins[strings.ToLower(s)]
		if !ok {
			return r, fmt.Errorf("%w: unknown pin %q", errBadRow, s)
		}
		r[0] = byte(pin)
	} else {
		pin, err := number(row[0])
		if err != nil {
			return r, err
		}
		if pin >= ReleaseAtTick {
			return r, fmt.Errorf("%w: pin %d is reserved", errBadRow, pin)
		}
		r[0] = pin
	}

	for i := 1; i < len(r); i++ {
		key, err := parseKey(row[i])
		if err != nil {
			return r, err
		}
		r[i] = key
	}

	return r, nil
}

func parseKey(v interface{}) (byte, error) {
	if s, ok := v.(string); ok {
		if k, ok := namedKeys[strings.ToLower(s)]; ok {
			return k, nil
		}
		if len(s) == 1 {
			return s[0], nil
		}
		return 0, fmt.Errorf("%w: unknown key %q", errBadRow, s)
	}
	return number(v)
}

func number(v interface{}) (byte, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > 0xff {
			return 0, fmt.Errorf("%w: %d out of range", errBadRow, x)
		}
		n = int64(x)
	case float64:
		n = int64(x)
		if float64(n) != x {
			return 0, fmt.Errorf("%w: %v is not an integer", errBadRow, x)
		}
	default:
		return 0, fmt.Errorf("%w: unexpected value %v", errBadRow, v)
	}
	if n < 0 || n > 0xff {
		return 0, fmt.Errorf("%w: %d out of range", errBadRow, n)
	}
	return byte(n), nil
}

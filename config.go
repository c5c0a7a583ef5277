package zxgames

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/bodgit/zxgames/blob"
	"github.com/bodgit/zxgames/device"
	"github.com/goccy/go-yaml"
)

const (
	// ConfigFilename is the configuration file looked for in the working
	// directory
	ConfigFilename = "zxgames.yaml"

	defaultDirectory     = "games"
	defaultExtension     = ".z80"
	defaultKeymaps       = "games/keymaps.bin"
	defaultAddress       = "0x10080000"
	defaultLegacyAddress = "0x1007f100"
	defaultOutput        = "games.bin"
)

var errConfig = errors.New("config")

// Config holds the settings for building and flashing the games blob
type Config struct {
	// Directory is scanned for game snapshots
	Directory string `yaml:"directory"`
	// Extension selects which files in Directory are games
	Extension string `yaml:"extension"`
	// Keymaps is the file appended verbatim after the games
	Keymaps string `yaml:"keymaps"`
	// Address is the flash address the blob is written to, as a hex or
	// decimal string
	Address string `yaml:"address"`
	// LegacyAddress is the flash address used for the headerless layout
	LegacyAddress string `yaml:"legacy_address"`
	// Alignment is the boundary the emulator scans for the blob
	Alignment int `yaml:"alignment"`
	// Tool is the flashing tool to run
	Tool string `yaml:"tool"`
	// Output is the file written by the build command
	Output string `yaml:"output"`
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		Directory:     defaultDirectory,
		Extension:     defaultExtension,
		Keymaps:       defaultKeymaps,
		Address:       defaultAddress,
		LegacyAddress: defaultLegacyAddress,
		Alignment:     blob.DefaultAlignment,
		Tool:          device.DefaultTool,
		Output:        defaultOutput,
	}
}

// FillDefaults sets any zero-value fields to their default values
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.Directory == "" {
		c.Directory = def.Directory
	}
	if c.Extension == "" {
		c.Extension = def.Extension
	}
	if c.Keymaps == "" {
		c.Keymaps = def.Keymaps
	}
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.LegacyAddress == "" {
		c.LegacyAddress = def.LegacyAddress
	}
	if c.Alignment == 0 {
		c.Alignment = def.Alignment
	}
	if c.Tool == "" {
		c.Tool = def.Tool
	}
	if c.Output == "" {
		c.Output = def.Output
	}
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid address %q", errConfig, s)
	}
	return uint32(v), nil
}

// BaseAddress returns the parsed flash address of the blob
func (c *Config) BaseAddress() (uint32, error) {
	return parseAddress(c.Address)
}

// LegacyBaseAddress returns the parsed flash address of the headerless
// layout
func (c *Config) LegacyBaseAddress() (uint32, error) {
	return parseAddress(c.LegacyAddress)
}

// Validate checks the addresses parse and that the blob address is on an
// alignment boundary
func (c *Config) Validate() error {
	addr, err := c.BaseAddress()
	if err != nil {
		return err
	}
	if _, err := c.LegacyBaseAddress(); err != nil {
		return err
	}
	return device.ValidateAddress(addr, c.Alignment)
}

// LoadConfig reads a YAML configuration file. Unknown keys are rejected and
// any setting not present takes its default value.
func LoadConfig(file string) (*Config, error) {
	b, err := ioutil.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	c := new(Config)
	if err := yaml.UnmarshalWithOptions(b, c, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errConfig, file, err)
	}
	c.FillDefaults()

	return c, nil
}

/*
Package zxgames is a library for packaging ZX Spectrum game snapshots into a
single blob and writing it to the flash of a RP2040 based emulator.
*/
package zxgames

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/bodgit/zxgames/blob"
	"github.com/bodgit/zxgames/device"
	"github.com/bodgit/zxgames/legacy"
)

var (
	// ErrNotFound is returned when the games directory or keymap file
	// doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrReadFailed is returned when a game or keymap file cannot be read
	ErrReadFailed = errors.New("read failed")
)

// Packer builds the games blob from a directory and writes it to a device
type Packer struct {
	cfg     *Config
	flasher device.Flasher
	logger  *log.Logger
}

// New returns a Packer using cfg. Any missing settings in cfg take their
// default values.
func New(cfg *Config, flasher device.Flasher, logger *log.Logger) *Packer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.FillDefaults()
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Packer{
		cfg:     cfg,
		flasher: flasher,
		logger:  logger,
	}
}

// Assets enumerates and reads every game in the configured directory
func (p *Packer) Assets() ([]blob.Asset, error) {
	files, err := FindAssets(p.cfg.Directory, p.cfg.Extension)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Found %d games in \"%s\"\n", len(files), p.cfg.Directory)

	return p.loadAssets(p.cfg.Directory, files)
}

// Build enumerates the games and returns the encoded blob, including the
// keymap data. Nothing is returned unless every game could be read and
// encoded.
func (p *Packer) Build() ([]byte, error) {
	assets, err := p.Assets()
	if err != nil {
		return nil, err
	}

	aux, err := readFile(p.cfg.Keymaps)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Read %d bytes of keymaps from \"%s\"\n", len(aux), p.cfg.Keymaps)

	b, err := blob.Marshal(assets, aux)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Encoded %d games into %d bytes\n", len(assets), len(b))

	return b, nil
}

// WriteTo builds the blob and writes it to w
func (p *Packer) WriteTo(w io.Writer) (int64, error) {
	b, err := p.Build()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Flash writes an already built blob to the device at the configured
// address
func (p *Packer) Flash(b []byte) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	if p.flasher == nil {
		return fmt.Errorf("%w: no flasher configured", device.ErrDeviceWriteFailed)
	}

	addr, _ := p.cfg.BaseAddress()
	p.logger.Printf("Writing %d bytes at %#x\n", len(b), addr)

	return p.flasher.Write(b, addr)
}

// Run builds the blob and flashes it. The address is validated before any
// file is read.
func (p *Packer) Run() error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	b, err := p.Build()
	if err != nil {
		return err
	}

	return p.Flash(b)
}

// Legacy returns the games concatenated with no headers along with the
// C header describing where each one ends up in flash
func (p *Packer) Legacy() ([]byte, []byte, error) {
	base, err := p.cfg.LegacyBaseAddress()
	if err != nil {
		return nil, nil, err
	}

	assets, err := p.Assets()
	if err != nil {
		return nil, nil, err
	}

	games, err := legacy.Table(base, assets)
	if err != nil {
		return nil, nil, err
	}

	data := new(bytes.Buffer)
	if err := blob.EncodeLegacy(data, assets); err != nil {
		return nil, nil, err
	}

	header := new(bytes.Buffer)
	if err := legacy.WriteHeader(header, games); err != nil {
		return nil, nil, err
	}

	return data.Bytes(), header.Bytes(), nil
}

// FlashLegacy writes headerless data at the legacy address, which is not
// required to be aligned
func (p *Packer) FlashLegacy(data []byte) error {
	if p.flasher == nil {
		return fmt.Errorf("%w: no flasher configured", device.ErrDeviceWriteFailed)
	}
	base, err := p.cfg.LegacyBaseAddress()
	if err != nil {
		return err
	}
	return p.flasher.Write(data, base)
}

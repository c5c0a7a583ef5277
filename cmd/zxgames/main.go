package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bodgit/zxgames"
	"github.com/bodgit/zxgames/blob"
	"github.com/bodgit/zxgames/device"
	"github.com/bodgit/zxgames/keymap"
	"github.com/bodgit/zxgames/legacy"
	"github.com/bodgit/zxgames/uf2"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(c.App.ErrWriter)
	}
	return logger
}

// loadConfig starts from the configuration file, if there is one, and then
// applies any flags or environment variables on top
func loadConfig(c *cli.Context) (*zxgames.Config, error) {
	cfg := zxgames.DefaultConfig()
	file := c.String("config")
	if _, err := os.Stat(file); err == nil || c.IsSet("config") {
		if cfg, err = zxgames.LoadConfig(file); err != nil {
			return nil, err
		}
	}

	if c.IsSet("directory") {
		cfg.Directory = c.String("directory")
	}
	if c.IsSet("extension") {
		cfg.Extension = c.String("extension")
	}
	if c.IsSet("keymaps") {
		cfg.Keymaps = c.String("keymaps")
	}
	if c.IsSet("address") {
		cfg.Address = c.String("address")
	}
	if c.IsSet("legacy-address") {
		cfg.LegacyAddress = c.String("legacy-address")
	}
	if c.IsSet("alignment") {
		cfg.Alignment = c.Int("alignment")
	}
	if c.IsSet("tool") {
		cfg.Tool = c.String("tool")
	}

	return cfg, nil
}

func newPacker(c *cli.Context) (*zxgames.Packer, *zxgames.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	flasher := device.NewPicotool(cfg.Tool)
	if c.Bool("verbose") {
		flasher.Output = c.App.ErrWriter
	}

	return zxgames.New(cfg, flasher, newLogger(c)), cfg, nil
}

func flashGames(c *cli.Context) error {
	p, cfg, err := newPacker(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	fmt.Fprintf(c.App.Writer, "Packing games from %s\n", cfg.Directory)
	if err := p.Run(); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "Done. Games written at %s\n", cfg.Address)

	return nil
}

func buildGames(c *cli.Context) error {
	p, cfg, err := newPacker(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	output := cfg.Output
	if c.IsSet("output") {
		output = c.String("output")
	}

	b, err := p.Build()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if filepath.Ext(output) == ".uf2" {
		if err := cfg.Validate(); err != nil {
			return cli.NewExitError(err, 1)
		}
		addr, _ := cfg.BaseAddress()
		buf := new(bytes.Buffer)
		if err := uf2.Encode(buf, b, addr, uf2.FamilyRP2040); err != nil {
			return cli.NewExitError(err, 1)
		}
		b = buf.Bytes()
	}

	if err := ioutil.WriteFile(output, b, 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %d bytes to %s\n", len(b), output)

	return nil
}

func flashFile(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	p, cfg, err := newPacker(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	b, err := ioutil.ReadFile(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if _, err := blob.Decode(b); err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := p.Flash(b); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "Done. %s written at %s\n", c.Args().First(), cfg.Address)

	return nil
}

func inspect(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	b, err := ioutil.ReadFile(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	off, err := blob.Find(b, cfg.Alignment)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if off > 0 {
		fmt.Fprintf(c.App.Writer, "Blob found at offset %#x\n", off)
	}

	decoded, err := blob.Decode(b[off:])
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	for _, e := range decoded.Entries {
		fmt.Fprintf(c.App.Writer, "%#08x %-32s %8d %s\n", e.Offset, e.Name, e.Size, zxgames.CRC(e.Payload))
	}
	fmt.Fprintf(c.App.Writer, "%d games, %d bytes of keymaps\n", len(decoded.Entries), len(decoded.Aux))

	if keymaps, err := keymap.Decode(decoded.Aux); err == nil {
		for _, k := range keymaps {
			fmt.Fprintf(c.App.Writer, "keymap %s, %d rows\n", k.Name, len(k.Rows))
		}
	}

	return nil
}

func compileKeymaps(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	src, err := ioutil.ReadFile(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	b, err := keymap.Compile(src)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := ioutil.WriteFile(c.Args().Get(1), b, 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %d bytes to %s\n", len(b), c.Args().Get(1))

	return nil
}

func appendUF2(c *cli.Context) error {
	if c.NArg() < 4 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	offset, err := strconv.ParseUint(c.Args().Get(2), 0, 32)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid data address: %s", c.Args().Get(2)), 1)
	}

	data, err := ioutil.ReadFile(c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	in, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer in.Close()

	out := new(bytes.Buffer)
	stats, err := uf2.Append(out, in, data, uint32(offset))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := ioutil.WriteFile(c.Args().Get(3), out.Bytes(), 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}

	fmt.Fprintf(c.App.Writer, "%d bytes data file: appended %d data and %d padding blocks to %d original blocks\n",
		len(data), stats.DataBlocks, stats.PaddingBlocks, stats.FirmwareBlocks)
	fmt.Fprintf(c.App.Writer, "The generated UF2 file will flash %d bytes in total\n", stats.Bytes)

	return nil
}

func listUF2(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	blocks, err := uf2.ReadBlocks(f)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	for i := range blocks {
		fmt.Fprintln(c.App.Writer, blocks[i].String())
	}

	return nil
}

func buildLegacy(c *cli.Context) error {
	p, _, err := newPacker(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	data, header, err := p.Legacy()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := ioutil.WriteFile(c.String("output"), data, 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := ioutil.WriteFile(c.String("header"), header, 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s and %s\n", c.String("output"), c.String("header"))

	if c.Bool("flash") {
		if err := p.FlashLegacy(data); err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Fprintln(c.App.Writer, "Done. Games flashed, rebuild the firmware with the new header")
	}

	return nil
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Name = "zxgames"
	app.Usage = "ZX Spectrum emulator games flashing utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"ZXGAMES_CONFIG"},
			Value:   zxgames.ConfigFilename,
			Usage:   "path to configuration file",
		},
		&cli.StringFlag{
			Name:    "directory",
			Aliases: []string{"d"},
			EnvVars: []string{"ZXGAMES_DIRECTORY"},
			Usage:   "directory containing the games",
		},
		&cli.StringFlag{
			Name:    "extension",
			EnvVars: []string{"ZXGAMES_EXTENSION"},
			Usage:   "file extension of the games",
		},
		&cli.StringFlag{
			Name:    "keymaps",
			EnvVars: []string{"ZXGAMES_KEYMAPS"},
			Usage:   "keymap file appended after the games",
		},
		&cli.StringFlag{
			Name:    "address",
			EnvVars: []string{"ZXGAMES_ADDRESS"},
			Usage:   "flash address of the games",
		},
		&cli.StringFlag{
			Name:    "legacy-address",
			EnvVars: []string{"ZXGAMES_LEGACY_ADDRESS"},
			Usage:   "flash address of the games for the legacy command",
		},
		&cli.IntFlag{
			Name:    "alignment",
			EnvVars: []string{"ZXGAMES_ALIGNMENT"},
			Usage:   "flash boundary the emulator scans for the games",
		},
		&cli.StringFlag{
			Name:    "tool",
			EnvVars: []string{"ZXGAMES_TOOL"},
			Usage:   "path to picotool",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Action = flashGames

	app.Commands = []*cli.Command{
		{
			Name:        "build",
			Usage:       "Build the games blob without flashing it",
			Description: "A .uf2 output can be copied to the emulator in bootloader mode.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "output file, .bin or .uf2",
				},
			},
			Action: buildGames,
		},
		{
			Name:      "flash",
			Usage:     "Flash a previously built games blob",
			ArgsUsage: "FILE",
			Action:    flashFile,
		},
		{
			Name:      "inspect",
			Usage:     "List the games in a blob or flash dump",
			ArgsUsage: "FILE",
			Action:    inspect,
		},
		{
			Name:      "keymap",
			Usage:     "Compile YAML keymap definitions",
			ArgsUsage: "SOURCE OUTPUT",
			Action:    compileKeymaps,
		},
		{
			Name:      "uf2-append",
			Usage:     "Append a binary file to a firmware UF2 file",
			ArgsUsage: "FIRMWARE DATA ADDRESS OUTPUT",
			Action:    appendUF2,
		},
		{
			Name:      "uf2-ls",
			Usage:     "List the blocks in a UF2 file",
			ArgsUsage: "FILE",
			Action:    listUF2,
		},
		{
			Name:  "legacy",
			Usage: "Concatenate the games and generate " + legacy.Filename,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "output",
					Value: "games.bin",
					Usage: "concatenated games output",
				},
				&cli.StringFlag{
					Name:  "header",
					Value: legacy.Filename,
					Usage: "C header output",
				},
				&cli.BoolFlag{
					Name:  "flash",
					Usage: "flash the concatenated games at the legacy address",
				},
			},
			Action: buildLegacy,
		},
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

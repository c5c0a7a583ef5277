/*
Package device writes a games blob to the flash of the emulator hardware by
running an external flashing tool.
*/
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
)

// DefaultTool is the flashing tool used when none is configured
const DefaultTool = "picotool"

var (
	// ErrDeviceWriteFailed is returned when the flashing tool could not be
	// run or exited with a non-zero status
	ErrDeviceWriteFailed = errors.New("device: write failed")
	// ErrMisaligned is returned by ValidateAddress
	ErrMisaligned = errors.New("device: misaligned address")
)

// Flasher writes data to the device flash at the given address
type Flasher interface {
	Write(data []byte, address uint32) error
}

// CommandRunner runs an external command, returning its output
type CommandRunner interface {
	Run(name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec
type ExecRunner struct{}

// Run runs the named command and waits for it to exit
func (r *ExecRunner) Run(name string, args ...string) (string, string, error) {
	cmd := exec.Command(name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Picotool flashes data using the Raspberry Pi picotool utility
type Picotool struct {
	// Path is the tool to run, DefaultTool if empty
	Path   string
	Runner CommandRunner
	// Output receives the diagnostic output of the tool, if non-nil
	Output io.Writer
}

// NewPicotool returns a Picotool running the tool at path
func NewPicotool(path string) *Picotool {
	return &Picotool{
		Path:   path,
		Runner: &ExecRunner{},
	}
}

// Write saves data to a temporary file and loads it into the flash at
// address. The address is not checked, use ValidateAddress first.
func (p *Picotool) Write(data []byte, address uint32) error {
	path, cleanup, err := writeTemp(data)
	if err != nil {
		return err
	}
	defer cleanup()

	return p.Load(path, address)
}

// Load loads an existing binary file into the flash at address
func (p *Picotool) Load(path string, address uint32) error {
	tool := p.Path
	if tool == "" {
		tool = DefaultTool
	}
	runner := p.Runner
	if runner == nil {
		runner = &ExecRunner{}
	}

	stdout, stderr, err := runner.Run(tool, "load", path, "-t", "bin", "-o", fmt.Sprintf("%#x", address))
	if p.Output != nil {
		io.WriteString(p.Output, stdout)
		io.WriteString(p.Output, stderr)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrDeviceWriteFailed, tool, err, stderr)
	}

	return nil
}

// ValidateAddress checks that address is a multiple of alignment, the
// emulator only looks for the blob at those boundaries
func ValidateAddress(address uint32, alignment int) error {
	if alignment <= 0 {
		return fmt.Errorf("%w: invalid alignment %d", ErrMisaligned, alignment)
	}
	if uint64(address)%uint64(alignment) != 0 {
		return fmt.Errorf("%w: %#x is not a multiple of %d", ErrMisaligned, address, alignment)
	}
	return nil
}

func writeTemp(data []byte) (path string, cleanup func(), err error) {
	f, err := ioutil.TempFile("", "zxgames-*.bin")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}

	path = f.Name()
	cleanup = func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}

	return path, cleanup, nil
}

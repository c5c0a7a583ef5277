package zxgames

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/bodgit/zxgames/blob"
)

// FindAssets returns the names of the regular files in dir with the given
// extension, sorted byte-wise. Hidden files are ignored.
func FindAssets(dir, ext string) ([]string, error) {
	d, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	defer d.Close()

	info, err := d.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrReadFailed, dir)
	}

	names, err := d.Readdirnames(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	files := make([]string, 0, len(names))
	for _, name := range names {
		// Ignore any hidden files, otherwise we end up fighting with things like Spotlight, etc.
		if name[0] == '.' {
			continue
		}

		if filepath.Ext(name) != ext {
			continue
		}

		// Follows symlinks, anything that isn't a normal file is ignored
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, name)
	}

	sort.Strings(files)

	return files, nil
}

func readFile(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	defer f.Close()

	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFailed, file, err)
	}

	return b, nil
}

func (p *Packer) loadAssets(dir string, files []string) ([]blob.Asset, error) {
	assets := make([]blob.Asset, 0, len(files))
	for _, file := range files {
		b, err := readFile(filepath.Join(dir, file))
		if err != nil {
			return nil, err
		}
		p.logger.Printf("Read \"%s\", %d bytes with CRC \"%s\"\n", file, len(b), CRC(b))

		assets = append(assets, blob.Asset{
			Filename: file,
			Payload:  b,
		})
	}
	return assets, nil
}

/*
Package uf2 implements reading and writing of UF2 files, the format used to
flash the RP2040 by copying a file to the mass storage device it presents in
bootloader mode.

A UF2 file is a sequence of 512 byte blocks. Each block has a 32 byte header
holding two magic values, flags, the flash address, the payload size, the
block number, the total number of blocks and the family ID, followed by 476
bytes of data of which only the first payload size bytes are used, and a
final magic value. All values are little endian.
*/
package uf2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	magicStart0 = 0x0a324655
	magicStart1 = 0x9e5d5157
	magicEnd    = 0x0ab16f30

	// BlockSize is the size of a single UF2 block
	BlockSize = 512
	// DataSize is the size of the data area in a block
	DataSize = 476
	// PayloadSize is the number of data bytes used in each block written
	PayloadSize = 256

	// FlagFamilyIDPresent indicates the FamilyID field is set
	FlagFamilyIDPresent = 0x00002000

	// FamilyRP2040 is the family ID of the RP2040
	FamilyRP2040 = 0xe48bff56
)

var (
	errBadMagic     = errors.New("uf2: bad magic")
	errShortBlock   = errors.New("uf2: short block")
	errMisaligned   = errors.New("uf2: address must be non-zero and 256 byte aligned")
	errNoBlocks     = errors.New("uf2: no blocks in input")
	errOverlap      = errors.New("uf2: data overlaps existing blocks")
	errBlockNumbers = errors.New("uf2: block numbers mismatch")
	errEmpty        = errors.New("uf2: no data")
)

// Block is a single UF2 block
type Block struct {
	Flags       uint32
	TargetAddr  uint32
	PayloadSize uint32
	BlockNo     uint32
	NumBlocks   uint32
	FamilyID    uint32
	Data        [DataSize]byte
}

type rawBlock struct {
	MagicStart0 uint32
	MagicStart1 uint32
	Block
	MagicEnd uint32
}

// MarshalBinary encodes the block into binary form
func (b *Block) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(BlockSize)
	raw := rawBlock{
		MagicStart0: magicStart0,
		MagicStart1: magicStart1,
		Block:       *b,
		MagicEnd:    magicEnd,
	}
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the block from binary form
func (b *Block) UnmarshalBinary(data []byte) error {
	if len(data) != BlockSize {
		return errShortBlock
	}
	var raw rawBlock
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return err
	}
	if raw.MagicStart0 != magicStart0 || raw.MagicStart1 != magicStart1 || raw.MagicEnd != magicEnd {
		return errBadMagic
	}
	*b = raw.Block
	return nil
}

// String returns a one line summary of the block
func (b *Block) String() string {
	return fmt.Sprintf("Block: %d/%d Family: 0x%08x Flags: 0x%08x %d bytes@0x%08x",
		b.BlockNo+1, b.NumBlocks, b.FamilyID, b.Flags, b.PayloadSize, b.TargetAddr)
}

// ReadBlocks reads every block from r
func ReadBlocks(r io.Reader) ([]Block, error) {
	var blocks []Block
	buf := make([]byte, BlockSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				return blocks, nil
			}
			if err == io.ErrUnexpectedEOF {
				return nil, errShortBlock
			}
			return nil, err
		}
		var b Block
		if err := b.UnmarshalBinary(buf); err != nil {
			return nil, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		blocks = append(blocks, b)
	}
}

func writeBlock(w io.Writer, b *Block) error {
	buf, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func numBlocks(n int) int {
	return (n + PayloadSize - 1) / PayloadSize
}

func checkAddress(addr uint32) error {
	if addr == 0 || addr%PayloadSize != 0 {
		return fmt.Errorf("%w: %#x", errMisaligned, addr)
	}
	return nil
}

// Encode writes data to w as a standalone UF2 file flashing it at base
func Encode(w io.Writer, data []byte, base, family uint32) error {
	if len(data) == 0 {
		return errEmpty
	}
	if err := checkAddress(base); err != nil {
		return err
	}

	total := numBlocks(len(data))
	for i := 0; i < total; i++ {
		b := Block{
			Flags:       FlagFamilyIDPresent,
			TargetAddr:  base + uint32(i*PayloadSize),
			PayloadSize: PayloadSize,
			BlockNo:     uint32(i),
			NumBlocks:   uint32(total),
			FamilyID:    family,
		}
		copy(b.Data[:PayloadSize], data[i*PayloadSize:])
		if err := writeBlock(w, &b); err != nil {
			return err
		}
	}

	return nil
}

// AppendStats reports what Append wrote
type AppendStats struct {
	FirmwareBlocks int
	PaddingBlocks  int
	DataBlocks     int
	// Bytes is the total payload flashed by the output
	Bytes uint64
}

// Append copies the firmware UF2 read from r to w and adds blocks so that
// data is also flashed at offset. The RP2040 bootloader rejects files with
// holes so any gap between the firmware and offset is filled with zeroed
// padding blocks.
func Append(w io.Writer, r io.Reader, data []byte, offset uint32) (*AppendStats, error) {
	if len(data) == 0 {
		return nil, errEmpty
	}
	if err := checkAddress(offset); err != nil {
		return nil, err
	}

	blocks, err := ReadBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errNoBlocks
	}

	last := blocks[len(blocks)-1]
	if last.NumBlocks != last.BlockNo+1 {
		return nil, errBlockNumbers
	}

	var maxAddr uint32
	for _, b := range blocks {
		if b.TargetAddr > maxAddr {
			maxAddr = b.TargetAddr
		}
	}
	if uint64(maxAddr)+PayloadSize > uint64(offset) {
		return nil, fmt.Errorf("%w: highest block at %#x", errOverlap, maxAddr)
	}

	stats := &AppendStats{
		FirmwareBlocks: len(blocks),
		PaddingBlocks:  int((offset - (maxAddr + PayloadSize)) / PayloadSize),
		DataBlocks:     numBlocks(len(data)),
	}
	additional := uint32(stats.PaddingBlocks + stats.DataBlocks)

	for i := range blocks {
		blocks[i].NumBlocks += additional
		if err := writeBlock(w, &blocks[i]); err != nil {
			return nil, err
		}
		stats.Bytes += uint64(blocks[i].PayloadSize)
	}

	b := Block{
		Flags:       last.Flags,
		TargetAddr:  maxAddr,
		PayloadSize: PayloadSize,
		BlockNo:     last.BlockNo,
		NumBlocks:   last.NumBlocks + additional,
		FamilyID:    blocks[0].FamilyID,
	}
	for i := uint32(0); i < additional; i++ {
		b.TargetAddr += PayloadSize
		b.BlockNo++
		b.Data = [DataSize]byte{}
		if b.TargetAddr >= offset {
			copy(b.Data[:PayloadSize], data[b.TargetAddr-offset:])
		}
		if err := writeBlock(w, &b); err != nil {
			return nil, err
		}
		stats.Bytes += PayloadSize
	}

	return stats, nil
}

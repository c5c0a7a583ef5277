package zxgames

import (
	"fmt"
	"hash/crc32"
)

// CRC returns the CRC-32 of b formatted as eight uppercase hex digits
func CRC(b []byte) string {
	h := crc32.NewIEEE()
	h.Write(b)
	return fmt.Sprintf("%.*X", crc32.Size<<1, h.Sum(nil))
}

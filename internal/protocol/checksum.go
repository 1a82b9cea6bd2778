package protocol

import "github.com/sigurn/crc16"

var xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum computes CRC-16/XMODEM (poly 0x1021, init 0, unreflected).
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, xmodemTable)
}

// checksumParts runs the CRC over several slices without joining them.
func checksumParts(parts ...[]byte) uint16 {
	crc := crc16.Init(xmodemTable)
	for _, p := range parts {
		crc = crc16.Update(crc, p, xmodemTable)
	}
	return crc16.Complete(crc, xmodemTable)
}

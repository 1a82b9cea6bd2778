// Package protocol implements the wire format of the QN902x serial
// bootloader: frame encoding, CRC-16/XMODEM checksums and response decoding.
package protocol

import "fmt"

// Command is the signed 8-bit command field of a frame.
type Command int8

// Bootloader commands.
const (
	CmdConfigureUART     Command = 0x34
	CmdBootloaderVersion Command = 0x36
	CmdChipID            Command = 0x37
	CmdFlashID           Command = 0x38
	CmdSetLoadTarget     Command = 0x39
	CmdSetProgramAddress Command = 0x3b
	CmdSectorErase       Command = 0x42
	CmdProgram           Command = 0x45
	CmdReadPage          Command = 0x46
	CmdReboot            Command = 0x4a

	// Undocumented steps issued before an application upload.
	CmdVendorStep1 Command = 0x4c
	CmdVendorStep2 Command = 0x4d
)

// Wire constants.
const (
	StartByte   byte = 0x71
	SyncRequest byte = 0x33

	SyncSuccess   byte = 0x01
	SyncFailure   byte = 0x02
	ResultSuccess byte = 0x03
	ResultFailure byte = 0x04

	// HeaderSize is command + length + reserved.
	HeaderSize   = 4
	ChecksumSize = 2
	// Overhead is everything in a frame except the payload.
	Overhead = 1 + HeaderSize + ChecksumSize

	MaxPayload = 0xFFFF
)

var commandNames = map[Command]string{
	CmdConfigureUART:     "configure-uart",
	CmdBootloaderVersion: "bootloader-version",
	CmdChipID:            "chip-id",
	CmdFlashID:           "flash-id",
	CmdSetLoadTarget:     "set-load-target",
	CmdSetProgramAddress: "set-program-address",
	CmdSectorErase:       "sector-erase",
	CmdProgram:           "program",
	CmdReadPage:          "read-page",
	CmdReboot:            "reboot",
	CmdVendorStep1:       "vendor-0x4c",
	CmdVendorStep2:       "vendor-0x4d",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cmd-0x%02x", byte(c))
}

// ConfirmOnly reports whether the command is answered by a single sync
// byte with no result byte or data frame following it.
func (c Command) ConfirmOnly() bool {
	switch c {
	case CmdConfigureUART, CmdSetLoadTarget, CmdSetProgramAddress, CmdReboot:
		return true
	}
	return false
}

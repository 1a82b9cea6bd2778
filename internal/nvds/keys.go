package nvds

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Well-known NVDS keys. Factory setting slot 1 has no key of its own.
const (
	KeyDeviceAddress        uint8 = 1
	KeyDeviceName           uint8 = 2
	KeyClockDrift           uint8 = 3
	KeyExternalWakeupTime   uint8 = 4
	KeyOscillatorWakeupTime uint8 = 5
	KeyRadioWakeupTime      uint8 = 6
	KeySleepEnable          uint8 = 7
	KeyFactorySetting2      uint8 = 8
	KeyFactorySetting3      uint8 = 9
	KeyFactorySetting4      uint8 = 10
	KeyTKType               uint8 = 11
	KeyTK                   uint8 = 12
	KeyIRK                  uint8 = 13
	KeyCSRK                 uint8 = 14
	KeyLTK                  uint8 = 15
	KeyXCSEL                uint8 = 16
	KeyTemperatureOffset    uint8 = 17
	KeyADCScale             uint8 = 18
	KeyADCVCM               uint8 = 19
)

// valueKind tells FormatValue how to render a value.
type valueKind int

const (
	kindBytes valueKind = iota
	kindAddress
	kindString
	kindUint
	kindBool
)

type keyInfo struct {
	label string
	kind  valueKind
}

var registry = map[uint8]keyInfo{
	KeyDeviceAddress:        {"Device address", kindAddress},
	KeyDeviceName:           {"Device name", kindString},
	KeyClockDrift:           {"Clock drift", kindUint},
	KeyExternalWakeupTime:   {"External wake-up time", kindUint},
	KeyOscillatorWakeupTime: {"Oscillator wake-up time", kindUint},
	KeyRadioWakeupTime:      {"Radio wake-up time", kindUint},
	KeySleepEnable:          {"Sleep mode enable", kindBool},
	KeyFactorySetting2:      {"Factory_Setting_2", kindBytes},
	KeyFactorySetting3:      {"Factory_Setting_3", kindBytes},
	KeyFactorySetting4:      {"Factory_Setting_4", kindBytes},
	KeyTKType:               {"TK Type", kindUint},
	KeyTK:                   {"TK", kindBytes},
	KeyIRK:                  {"IRK", kindBytes},
	KeyCSRK:                 {"CSRK", kindBytes},
	KeyLTK:                  {"LTK", kindBytes},
	KeyXCSEL:                {"XCSEL", kindUint},
	KeyTemperatureOffset:    {"Temperature offset", kindUint},
	KeyADCScale:             {"ADC scale", kindUint},
	KeyADCVCM:               {"ADC VCM", kindUint},
}

// UnknownLabel is the label of keys missing from the registry.
const UnknownLabel = "Unknown"

// Describe returns the human-readable label of key.
func Describe(key uint8) string {
	if info, ok := registry[key]; ok {
		return info.label
	}
	return UnknownLabel
}

// KnownKeys returns the registered keys in ascending order.
func KnownKeys() []uint8 {
	keys := make([]uint8, 0, len(registry))
	for k := 0; k < 256; k++ {
		if _, ok := registry[uint8(k)]; ok {
			keys = append(keys, uint8(k))
		}
	}
	return keys
}

// FormatValue renders a raw value for display. Numbers are little-endian,
// booleans are 0x00/0x01, the device name is NUL-terminated and the device
// address is stored byte-reversed.
func FormatValue(key uint8, value []byte) string {
	info, ok := registry[key]
	if !ok {
		return hex.EncodeToString(value)
	}

	switch info.kind {
	case kindAddress:
		parts := make([]string, len(value))
		for i, b := range value {
			parts[len(value)-1-i] = fmt.Sprintf("%02X", b)
		}
		return strings.Join(parts, ":")
	case kindString:
		s := value
		if i := strings.IndexByte(string(s), 0); i >= 0 {
			s = s[:i]
		}
		return fmt.Sprintf("%q", s)
	case kindBool:
		if len(value) == 1 && value[0] <= 1 {
			return fmt.Sprintf("%t", value[0] == 1)
		}
	case kindUint:
		switch len(value) {
		case 1:
			return fmt.Sprintf("%d", value[0])
		case 2:
			return fmt.Sprintf("%d", binary.LittleEndian.Uint16(value))
		case 4:
			return fmt.Sprintf("%d", binary.LittleEndian.Uint32(value))
		}
	}
	return hex.EncodeToString(value)
}

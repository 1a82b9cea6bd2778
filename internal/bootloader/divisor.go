package bootloader

// maxIntegerDivisor is the widest integer part that fits above the 8
// fractional bits of the 32-bit UART register.
const maxIntegerDivisor = 1<<24 - 1

// Divisor computes the UART divisor register for the given main clock and
// baud rate: (integer << 8) | fractional, where the fractional part is the
// remainder rounded to the nearest 1/64.
func Divisor(clockHz, baudRate uint32) (uint32, error) {
	if clockHz == 0 {
		return 0, &ConfigurationError{Field: "clock", Value: 0, Reason: "must be positive"}
	}
	if baudRate == 0 {
		return 0, &ConfigurationError{Field: "baud rate", Value: 0, Reason: "must be positive"}
	}

	clock := uint64(clockHz)
	scaled := 16 * uint64(baudRate)

	integer := clock / scaled
	if integer == 0 {
		return 0, &ConfigurationError{Field: "baud rate", Value: uint64(baudRate), Reason: "too high for clock"}
	}
	if integer > maxIntegerDivisor {
		return 0, &ConfigurationError{Field: "baud rate", Value: uint64(baudRate), Reason: "too low for clock"}
	}

	fractional := ((clock-integer*scaled)*64 + scaled/2) / scaled
	return uint32(integer<<8 + fractional), nil
}

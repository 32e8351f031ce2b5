// Package bytesize parses and formats human-readable byte quantities.
// It backs configuration fields like the local free-space floor
// ("10Gi") and the remote read-cache budget ("256Mi").
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a byte count that unmarshals from strings such as
// "10Gi", "500MB", or plain numbers.
//
// Binary suffixes (Ki/Mi/Gi/Ti, optionally with a trailing B) multiply
// by 1024; decimal suffixes (K/M/G/T, KB/MB/...) multiply by 1000.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// suffixMultiplier resolves a lowercase unit suffix to its multiplier.
func suffixMultiplier(unit string) (ByteSize, bool) {
	// A trailing "b" is optional for every unit ("gi" == "gib").
	if unit != "b" && strings.HasSuffix(unit, "b") {
		unit = strings.TrimSuffix(unit, "b")
	}
	switch unit {
	case "", "b":
		return B, true
	case "k":
		return KB, true
	case "m":
		return MB, true
	case "g":
		return GB, true
	case "t":
		return TB, true
	case "ki":
		return KiB, true
	case "mi":
		return MiB, true
	case "gi":
		return GiB, true
	case "ti":
		return TiB, true
	}
	return 0, false
}

// Parse converts a human-readable size string into a ByteSize.
func Parse(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	// Split the numeric prefix from the unit suffix.
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	numStr := trimmed[:split]
	unit := strings.ToLower(strings.TrimSpace(trimmed[split:]))

	if numStr == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	multiplier, ok := suffixMultiplier(unit)
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", trimmed[split:])
	}

	if strings.Contains(numStr, ".") {
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
		}
		return ByteSize(num * float64(multiplier)), nil
	}

	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
	}
	return ByteSize(num) * multiplier, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode directly from config files via mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest binary unit that fits.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns the size as a plain uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size as an int64. Values beyond math.MaxInt64 wrap.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

package utils

import (
	"math"
	"strconv"
)

type SizeFormat int

const (
	// SizeFormatDecimal uses powers of 1000 (kB, MB, ...)
	SizeFormatDecimal SizeFormat = iota
	// SizeFormatBinary uses powers of 1024 (KiB, MiB, ...)
	SizeFormatBinary
)

// FormatSize renders a byte count for humans. Zero and negative values yield an empty string.
func FormatSize(value int64, format SizeFormat) string {
	if value <= 0 {
		return ""
	}

	multiple, units, suffix := 1000.0, "kMGTPEZY", "B"
	if format == SizeFormatBinary {
		multiple, units, suffix = 1024.0, "KMGTPEZY", "iB"
	}

	exp := int(math.Log(float64(value)) / math.Log(multiple))
	if exp > len(units) {
		exp = len(units)
	}

	size := math.Round(float64(value)/math.Pow(multiple, float64(exp))*100) / 100
	ret := strconv.FormatFloat(size, 'f', -1, 64)
	switch {
	case exp > 0:
		return ret + string(units[exp-1]) + suffix
	case size == 1:
		return ret + "byte"
	default:
		return ret + "bytes"
	}
}

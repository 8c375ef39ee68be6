package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^([\d.]+)\s*([A-Za-z]+)$`)

// sizeUnits maps upper-cased unit suffixes to byte multipliers. KB/MB/GB are
// decimal; K/M/G and the IEC KiB/MiB/GiB forms are binary.
var sizeUnits = map[string]int64{
	"B":   1,
	"KB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"K":   1 << 10,
	"KIB": 1 << 10,
	"M":   1 << 20,
	"MIB": 1 << 20,
	"G":   1 << 30,
	"GIB": 1 << 30,
}

// ParseDataSize parses sizes like "512KB", "5MiB" or "1048576" into bytes.
// An empty string is zero, which callers treat as "no limit".
func ParseDataSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, nil
	}

	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		if val < 0 {
			return 0, fmt.Errorf("size must not be negative: %s", sizeStr)
		}
		return val, nil
	}

	matches := sizePattern.FindStringSubmatch(sizeStr)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid size format: %s (expected format like '512KB', '5MB', '1MiB')", sizeStr)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %s", matches[1])
	}

	multiplier, ok := sizeUnits[strings.ToUpper(matches[2])]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s (supported: B, KB, MB, GB, KiB, MiB, GiB)", matches[2])
	}

	bytes := value * float64(multiplier)
	if bytes < 0 || bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("size out of range: %s", sizeStr)
	}
	return int64(bytes), nil
}

// FormatDataSize renders a byte count with binary units, e.g. "1.5 KB".
func FormatDataSize(bytes int64) string {
	if bytes < 0 {
		return "invalid"
	}
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(bytes) / 1024
	exp := 0
	for value >= 1024 && exp < len(units)-1 {
		value /= 1024
		exp++
	}

	if value == float64(int64(value)) {
		return fmt.Sprintf("%.0f %s", value, units[exp])
	}
	return fmt.Sprintf("%.1f %s", value, units[exp])
}

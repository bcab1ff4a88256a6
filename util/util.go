package util

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// RoundTwoDecimals Rounds off a float64 value to 2 decimal places. Ex: 2.667 -> 2.67.
// All percentage values on analytics results use this.
func RoundTwoDecimals(value float64) float64 {
	return math.Round(value*100) / 100
}

func GetUUID() string {
	return uuid.New().String()
}

// SecondsToShortDurationString Converts seconds to a compact duration string. Ex: 3725 -> "1h 2m 5s".
func SecondsToShortDurationString(totalSeconds int64) string {
	if totalSeconds <= 0 {
		return "0s"
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

func ContainsStringInArray(array []string, value string) bool {
	for _, v := range array {
		if v == value {
			return true
		}
	}
	return false
}

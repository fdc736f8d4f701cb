package utils

import (
	"fmt"
	"strconv"
)

func RoundToOneDecimal(value float64) float64 {
	rounded, _ := strconv.ParseFloat(fmt.Sprintf("%.1f", value), 64)
	return rounded
}

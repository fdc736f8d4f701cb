package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatPeriod(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2026-03-02 - 2026-03-08", FormatPeriod(start, end))
}

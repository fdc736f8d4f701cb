package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcScoreBands(t *testing.T) {
	cases := []struct {
		minutes int
		want    int
	}{
		{0, 100},
		{294, 100}, // just under five hours
		{300, 80},  // exactly five hours
		{600, 70},
		{900, 60},  // fifteen hours
		{1200, 50}, // twenty hours
		{1800, 30},
		{6000, 20}, // floor
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CalcScore(c.minutes), "minutes=%d", c.minutes)
	}
}

func TestBadgeLabel(t *testing.T) {
	assert.Equal(t, "Healthy", BadgeLabel(100))
	assert.Equal(t, "Healthy", BadgeLabel(80))
	assert.Equal(t, "Power User", BadgeLabel(79))
	assert.Equal(t, "Power User", BadgeLabel(50))
	assert.Equal(t, "Super User", BadgeLabel(49))
	assert.Equal(t, "Super User", BadgeLabel(20))
}

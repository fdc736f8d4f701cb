// internal/service/report/score.go
package report

import (
	"math"

	"github.com/clarahq/clara-backend/pkg/utils"
)

// CalcScore maps weekly minutes to a 0-100 wellbeing score. Under five
// hours is a full score; each extra hour costs two points, with a floor
// of twenty past the twenty-hour mark.
func CalcScore(totalMinutes int) int {
	h := float64(totalMinutes) / 60
	switch {
	case h < 5:
		return 100
	case h <= 15:
		return int(math.Round(80 - (h-5)*2))
	case h <= 20:
		return int(math.Round(60 - (h-15)*2))
	default:
		return utils.Clamp(int(math.Round(50-(h-20)*2)), 20, 100)
	}
}

// BadgeLabel names the score band.
func BadgeLabel(score int) string {
	switch {
	case score >= 80:
		return "Healthy"
	case score >= 50:
		return "Power User"
	default:
		return "Super User"
	}
}

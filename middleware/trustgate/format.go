package trustgate

import (
	"math"
	"strconv"
	"time"
)

// formatSeconds arredonda para cima, mínimo 1: Retry-After/Refresh só aceitam segundos inteiros.
func formatSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}

package metrics

import (
	"fmt"
	"strings"
)

const barWidth = 40

// FormatProbabilities renders one line per class: index, probability and
// a bar proportional to it.
func FormatProbabilities(probs []float64) string {
	var b strings.Builder
	for class, p := range probs {
		n := int(p*barWidth + 0.5)
		if n < 0 {
			n = 0
		}
		if n > barWidth {
			n = barWidth
		}
		fmt.Fprintf(&b, "%d %.4f %s\n", class, p, strings.Repeat("#", n))
	}
	return b.String()
}

package slides

import "strings"

// MeasureFunc returns the rendered pixel width of s.
type MeasureFunc func(s string) float64

// Wrap breaks text into lines no wider than maxWidth using greedy word
// accumulation. A word that alone exceeds maxWidth gets a line to itself.
func Wrap(text string, maxWidth float64, measure MeasureFunc) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

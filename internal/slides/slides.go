// Package slides holds the fixed slideshow content and the pure timing math
// that maps elapsed time onto a slide and its fade opacity.
package slides

// Slide is one static content unit shown for a fixed duration.
type Slide struct {
	Title string
	Body  string
	Hue   float64 // background hue in [0,360)
}

var deck = []Slide{
	{
		Title: "Ada Lovelace",
		Body:  "Born in London in 1815, Augusta Ada Byron grew up studying mathematics and science at her mother's insistence.",
		Hue:   220,
	},
	{
		Title: "A Meeting of Minds",
		Body:  "In 1833 she met Charles Babbage and became fascinated by his Difference Engine and the plans for an Analytical Engine.",
		Hue:   265,
	},
	{
		Title: "The Notes",
		Body:  "Translating Menabrea's paper in 1843, she added notes three times longer than the original, including Note G.",
		Hue:   12,
	},
	{
		Title: "The First Program",
		Body:  "Note G described an algorithm for computing Bernoulli numbers on the engine, widely regarded as the first published program.",
		Hue:   160,
	},
	{
		Title: "Beyond Numbers",
		Body:  "She imagined machines composing music and manipulating symbols, anticipating general-purpose computing by a century.",
		Hue:   40,
	},
}

// Deck returns the ordered slideshow. The returned slice is a copy.
func Deck() []Slide {
	out := make([]Slide, len(deck))
	copy(out, deck)
	return out
}

// Count is the number of slides in the deck.
func Count() int {
	return len(deck)
}

package grading

// Band maps an inclusive lower percentage bound to a letter grade and its
// grade-point value.
type Band struct {
	Min    float64
	Letter string
	GPA    float64
}

// Scale is the institutional grading scale, ordered by descending lower
// bound. Lookup is first-match, so a band owns [Min, nextBand.Min).
var Scale = []Band{
	{97, "A+", 4.0},
	{93, "A", 4.0},
	{90, "A-", 3.7},
	{87, "B+", 3.3},
	{83, "B", 3.0},
	{80, "B-", 2.7},
	{77, "C+", 2.3},
	{73, "C", 2.0},
	{70, "C-", 1.7},
	{60, "D", 1.0},
	{0, "F", 0.0},
}

// Lookup resolves a percentage to its letter grade and GPA. The input must
// be the unrounded percentage; rounding first would shift results at band
// boundaries (89.999 is B+, not A-).
func Lookup(percentage float64) (letter string, gpa float64) {
	for _, b := range Scale {
		if percentage >= b.Min {
			return b.Letter, b.GPA
		}
	}
	return "F", 0.0
}

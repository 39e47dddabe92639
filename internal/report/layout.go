package report

// Fixed SF2 geometry, 1-based.
const (
	headerRow     = 11
	firstDateCol  = 4
	lastDateCol   = 28
	nameCol       = 2
	presentMarker = 0
	absentMarker  = "x"
	lateNote      = "Late arrival"
	commentAuthor = "SAM"
)

type rowSpan struct{ first, last int }

var rosterSections = []rowSpan{
	{first: 14, last: 43},
	{first: 46, last: 75},
}

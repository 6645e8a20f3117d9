package host

// ScalePoint is a labelled value of a port.
type ScalePoint struct {
	value Node
	label Node
}

// Value returns the value, usually a decimal literal.
func (s ScalePoint) Value() Node { return s.value }

// Label returns the human readable label.
func (s ScalePoint) Label() Node { return s.label }

type scalePointList struct {
	items []ScalePoint
}

// ScalePoints is an owned collection of scale points.
type ScalePoints struct {
	*Collection[*scalePointList, int, ScalePoint]
}

var scalePointCursor = Cursor[*scalePointList, int, ScalePoint]{
	Begin: func(*scalePointList) int { return 0 },
	IsEnd: func(l *scalePointList, i int) bool { return i >= len(l.items) },
	Next:  func(_ *scalePointList, i int) int { return i + 1 },
	Get:   func(l *scalePointList, i int) ScalePoint { return l.items[i] },
}

func newScalePoints(w *World, points []ScalePoint) ScalePoints {
	return ScalePoints{newCollection(w, &scalePointList{items: points}, scalePointCursor, true, func(l *scalePointList) {
		l.items = nil
	})}
}

// Size returns the number of scale points.
func (sp ScalePoints) Size() int {
	n := 0
	sp.withLock(func(l *scalePointList) { n = len(l.items) })
	return n
}

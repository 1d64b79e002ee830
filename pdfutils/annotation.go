package pdfutils

// Placement records one bubble drawn on the overlay.
type Placement struct {
	ID            string  `json:"id"`
	Index         int     `json:"index"`
	Page          int     `json:"page"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Color         string  `json:"color,omitempty"`
	ColorCategory string  `json:"colorCategory,omitempty"`
}

// ByPage orders placements by page, then top to bottom, then left to right.
type ByPage []*Placement

func (a ByPage) Len() int      { return len(a) }
func (a ByPage) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByPage) Less(i, j int) bool {
	if a[i].Page != a[j].Page {
		return a[i].Page < a[j].Page
	}
	if a[i].Y != a[j].Y {
		return a[i].Y > a[j].Y
	}
	return a[i].X < a[j].X
}

// ByIndex orders placements by marker number.
type ByIndex []*Placement

func (a ByIndex) Len() int           { return len(a) }
func (a ByIndex) Less(i, j int) bool { return a[i].Index < a[j].Index }
func (a ByIndex) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }

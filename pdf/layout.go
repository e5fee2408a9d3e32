package pdf

import (
	"fmt"
	"math"
)

// Output page geometry, ISO A4 portrait in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
	Margin     = 10.0
)

// Placement describes where one source page lands on the output document,
// in top-left page coordinates.
type Placement struct {
	X, Y, W, H float64
	// NewPage is true when this slot starts a fresh output page.
	NewPage bool
}

// Layout computes slot geometry for placing N source pages per output page.
type Layout struct {
	labelsPerPage int
	slotHeight    float64
}

// NewLayout returns a Layout for the given labels-per-page density.
func NewLayout(labelsPerPage int) (*Layout, error) {
	if labelsPerPage != 2 && labelsPerPage != 3 {
		return nil, fmt.Errorf("labels per page must be 2 or 3, got %d", labelsPerPage)
	}
	return &Layout{
		labelsPerPage: labelsPerPage,
		slotHeight:    (PageHeight - 2*Margin) / float64(labelsPerPage),
	}, nil
}

// LabelsPerPage returns the configured slot density.
func (l *Layout) LabelsPerPage() int { return l.labelsPerPage }

// Place computes the placement for a source page of srcW x srcH points in
// the given zero-based running slot. The page is scaled to fit its slot,
// never upscaled, and centered horizontally and vertically within the slot
// band. Source pages with non-positive dimensions are rejected; callers
// must skip them.
func (l *Layout) Place(slotIndex int, srcW, srcH float64) (Placement, error) {
	if srcW <= 0 || srcH <= 0 {
		return Placement{}, fmt.Errorf("source page has invalid dimensions %.2fx%.2f", srcW, srcH)
	}

	scale := math.Min((PageWidth-2*Margin)/srcW, l.slotHeight/srcH)
	scale = math.Min(scale, 1.0)

	w := srcW * scale
	h := srcH * scale
	slot := slotIndex % l.labelsPerPage

	return Placement{
		X:       Margin + (PageWidth-2*Margin-w)/2,
		Y:       Margin + float64(slot)*l.slotHeight + (l.slotHeight-h)/2,
		W:       w,
		H:       h,
		NewPage: slot == 0,
	}, nil
}

// PageCount returns how many output pages the given number of filled slots
// occupies.
func (l *Layout) PageCount(slots int) int {
	if slots <= 0 {
		return 0
	}
	return (slots + l.labelsPerPage - 1) / l.labelsPerPage
}

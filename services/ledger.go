package services

import "label-service/models"

// runLedger tracks exactly one PrintResult per requested order. Duplicate
// order IDs in the request collapse to one entry; every entry starts failed
// so an order the run never reaches still appears in the final accounting.
type runLedger struct {
	order   []string
	entries map[string]*models.PrintResult
}

func newRunLedger(orderIDs []string) *runLedger {
	l := &runLedger{entries: make(map[string]*models.PrintResult, len(orderIDs))}
	for _, id := range orderIDs {
		if _, ok := l.entries[id]; ok {
			continue
		}
		l.order = append(l.order, id)
		l.entries[id] = &models.PrintResult{OrderID: id, Error: "not processed"}
	}
	return l
}

func (l *runLedger) succeed(orderID, trackingCode string) {
	if e, ok := l.entries[orderID]; ok {
		e.TrackingCode = trackingCode
		e.Success = true
		e.Error = ""
	}
}

func (l *runLedger) fail(orderID, trackingCode, reason string) {
	if e, ok := l.entries[orderID]; ok {
		e.TrackingCode = trackingCode
		e.Success = false
		e.Error = reason
	}
}

// results returns the ledger in original request order.
func (l *runLedger) results() []models.PrintResult {
	out := make([]models.PrintResult, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.entries[id])
	}
	return out
}

func (l *runLedger) counts() (succeeded, failed int) {
	for _, e := range l.entries {
		if e.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func (l *runLedger) succeededTrackingCodes() []string {
	var codes []string
	for _, id := range l.order {
		if e := l.entries[id]; e.Success && e.TrackingCode != "" {
			codes = append(codes, e.TrackingCode)
		}
	}
	return codes
}

package types

import "github.com/ITDevS919/marketplace-backend/pkg/enums"

// OrderWarnings is the jsonb list of non-fatal flags stored on an order group.
type OrderWarnings []enums.OrderWarning

// Has reports whether the warning is already present.
func (w OrderWarnings) Has(warning enums.OrderWarning) bool {
	for _, candidate := range w {
		if candidate == warning {
			return true
		}
	}
	return false
}

// Append adds the warning if it is not present yet.
func (w OrderWarnings) Append(warning enums.OrderWarning) OrderWarnings {
	if w.Has(warning) {
		return w
	}
	return append(w, warning)
}

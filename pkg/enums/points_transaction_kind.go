package enums

// PointsTransactionKind labels entries in the append-only points ledger.
type PointsTransactionKind string

const (
	PointsTransactionEarned   PointsTransactionKind = "earned"
	PointsTransactionRedeemed PointsTransactionKind = "redeemed"
)

var validPointsTransactionKinds = []PointsTransactionKind{
	PointsTransactionEarned,
	PointsTransactionRedeemed,
}

// String implements fmt.Stringer.
func (p PointsTransactionKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PointsTransactionKind.
func (p PointsTransactionKind) IsValid() bool {
	for _, candidate := range validPointsTransactionKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

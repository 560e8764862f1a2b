package domain

type Outcome int

const (
	OutcomeInvalidRequest Outcome = iota
	OutcomeAdmitted
	OutcomeRejected
	OutcomeIndeterminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "invalid_request"
	}
}

// Decision is the terminal result of one admission attempt.
type Decision struct {
	Outcome         Outcome
	OrderID         string
	UnavailableSKUs []string
	Reason          string
	// Replayed is set when the order was admitted by an earlier attempt
	// carrying the same idempotency key.
	Replayed bool
}

func Admitted(orderID string) Decision {
	return Decision{Outcome: OutcomeAdmitted, OrderID: orderID}
}

func Replayed(orderID string) Decision {
	return Decision{Outcome: OutcomeAdmitted, OrderID: orderID, Replayed: true}
}

func Rejected(skus []string) Decision {
	return Decision{Outcome: OutcomeRejected, UnavailableSKUs: skus}
}

func InvalidRequest(reason string) Decision {
	return Decision{Outcome: OutcomeInvalidRequest, Reason: reason}
}

func Indeterminate(reason string) Decision {
	return Decision{Outcome: OutcomeIndeterminate, Reason: reason}
}

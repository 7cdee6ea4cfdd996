// Package candidate provides domain types for candidates moving through
// the recruiting pipeline.
package candidate

// Status is a pipeline stage. A candidate holds exactly one current
// status at any instant.
type Status string

// Pipeline stages in their natural progression order.
const (
	StatusForReview          Status = "FOR_REVIEW"
	StatusPaperScreening     Status = "PAPER_SCREENING"
	StatusExam               Status = "EXAM"
	StatusHRInterview        Status = "HR_INTERVIEW"
	StatusTechnicalInterview Status = "TECHNICAL_INTERVIEW"
	StatusFinalInterview     Status = "FINAL_INTERVIEW"
	StatusForJobOffer        Status = "FOR_JOB_OFFER"
	StatusOfferExtended      Status = "OFFER_EXTENDED"
	StatusHired              Status = "HIRED"
	StatusRejected           Status = "REJECTED"
	StatusWithdrawn          Status = "WITHDRAWN"
	StatusOnHold             Status = "ON_HOLD"
)

// Statuses lists all pipeline stages in order.
var Statuses = []Status{
	StatusForReview,
	StatusPaperScreening,
	StatusExam,
	StatusHRInterview,
	StatusTechnicalInterview,
	StatusFinalInterview,
	StatusForJobOffer,
	StatusOfferExtended,
	StatusHired,
	StatusRejected,
	StatusWithdrawn,
	StatusOnHold,
}

// IsTerminal reports whether the status permits no further automated
// transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusHired, StatusRejected, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a recognized pipeline stage.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", ErrUnknownStatus
	}
	return status, nil
}

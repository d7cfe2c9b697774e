package domain

// VisitState is the visit state of a frontier entry.
type VisitState string

// Frontier entry states.
const (
	VisitPending  VisitState = "pending"
	VisitInFlight VisitState = "in_flight"
	VisitDone     VisitState = "done"
	VisitFailed   VisitState = "failed"
)

// FrontierEntry is a URL admitted to a job's frontier.
type FrontierEntry struct {
	URL       string     `json:"url"`
	Host      string     `json:"host"`
	Depth     int        `json:"depth"`
	ParentURL string     `json:"parent_url,omitempty"`
	Seq       int        `json:"seq"`
	State     VisitState `json:"state"`
}

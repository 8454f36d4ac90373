package models

// StartDrawRequest is the body of POST /draws.
type StartDrawRequest struct {
	Count int `json:"count"`
	Depth int `json:"depth"`
}

// LoadPoolRequest is the body of POST /pool/load. Ref identifies the post
// whose comments form the pool.
type LoadPoolRequest struct {
	Ref string `json:"ref"`
}

// AttemptOption is one selectable reveal depth.
type AttemptOption struct {
	Depth int    `json:"depth"`
	Label string `json:"label"`
}

// DrawView is the state of a tenant's active draw as rendered to screens.
// Fields holds the display values after masking; raw values of hidden
// fields never appear in a view.
type DrawView struct {
	DrawID         string            `json:"drawId"`
	State          string            `json:"state"`
	Outcome        Outcome           `json:"outcome"`
	Position       int               `json:"position"`
	Attempt        string            `json:"attempt"`
	TargetPosition int               `json:"targetPosition"`
	SelectedCount  int               `json:"selectedCount"`
	Fields         map[string]string `json:"fields,omitempty"`
	Visibility     map[string]bool   `json:"visibility,omitempty"`
}

// PoolResponse is returned by the pool endpoints.
type PoolResponse struct {
	Entries              []Entry `json:"entries"`
	DistinctParticipants int     `json:"distinctParticipants"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

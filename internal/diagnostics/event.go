package diagnostics

// FailureEvent describes a failed condition check at its call site.
type FailureEvent struct {
	File      string `json:"file"`
	Function  string `json:"function"`
	Line      int    `json:"line"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

package dto

// AnalyzeResult is the structured outcome of the synchronous analysis entry
// point. Details is the delta summary for metric instructions or the diff
// comparison for the generic instruction.
type AnalyzeResult struct {
	Success bool        `json:"success"`
	Report  string      `json:"report,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DeltaDetails is the summary block attached to metric comparisons.
type DeltaDetails struct {
	Instruction    string `json:"instruction"`
	Compared       int    `json:"compared"`
	Added          int    `json:"added"`
	Removed        int    `json:"removed"`
	Unparseable    int    `json:"unparseable,omitempty"`
	MeanAbsDelta   string `json:"mean_abs_delta"`
	MedianAbsDelta string `json:"median_abs_delta"`
	RenderMode     string `json:"render_mode"`
	GroupCount     int    `json:"group_count"`
}

package types

// AgentMessage represents a message in the format expected by the agent and LLM.
type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Output modes accepted by the query endpoint.
const (
	OutputText  = "text"
	OutputTable = "table"
	OutputPlot  = "plot"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question   string `json:"question" binding:"required"`
	OutputMode string `json:"output_mode"`
	Language   string `json:"language"`
	Session    string `json:"session"`
}

// TableRows is the tabular preview attached to table responses.
type TableRows struct {
	Columns   []string `json:"columns"`
	Data      [][]any  `json:"data"`
	TotalRows int      `json:"total_rows"`
}

// Artifact references a file produced for the response.
type Artifact struct {
	URL         string `json:"url"`
	Kind        string `json:"kind"`
	PlotType    string `json:"plot_type,omitempty"`
	PlotHeading string `json:"plot_heading,omitempty"`
}

// QueryResponse is the envelope returned for every query, including failures.
type QueryResponse struct {
	Type         string     `json:"type"`
	Message      string     `json:"message"`
	Degraded     bool       `json:"degraded"`
	Status       string     `json:"status"`
	Session      string     `json:"session"`
	RequestID    string     `json:"request_id,omitempty"`
	HTML         string     `json:"html,omitempty"`
	CitationNote string     `json:"citation_note,omitempty"`
	Rows         *TableRows `json:"rows,omitempty"`
	Artifact     *Artifact  `json:"artifact,omitempty"`
	States       []string   `json:"states,omitempty"`
}

// SessionResponse is returned by GET /api/session.
type SessionResponse struct {
	Session  string `json:"session"`
	Greeting string `json:"greeting"`
	Turns    int    `json:"turns"`
}

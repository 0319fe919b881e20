package server

// ClarifyRequest is the body for POST /api/clarify.
type ClarifyRequest struct {
	Query string `json:"query"`
}

// ClarifyResponse carries the generated clarifying questions.
type ClarifyResponse struct {
	Questions []string `json:"questions"`
}

// researchEvent is one SSE payload on the research stream. Encoding the
// message as JSON keeps multi-line report bodies inside a single data frame.
type researchEvent struct {
	Message string `json:"message"`
}

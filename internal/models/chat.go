package models

// Message roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to POST /api/chat.
type ChatRequest struct {
	Message          string    `json:"message"`
	URLs             []string  `json:"urls,omitempty"`
	PreviousMessages []Message `json:"previousMessages,omitempty"`
}

// Attachment is an uploaded file whose text is used as an extra source.
type Attachment struct {
	Filename string
	Data     []byte
}

// ChatResponse is the successful reply, with provenance.
type ChatResponse struct {
	Content    string   `json:"content"`
	Sources    []string `json:"sources"`
	FailedURLs []string `json:"failedUrls"`
	Chunked    bool     `json:"chunked"`
}

// ChatErrorResponse is returned for every non-200 outcome of the chat endpoint.
// Content carries a user-facing apology the frontend can render as the assistant turn.
type ChatErrorResponse struct {
	Error      string   `json:"error"`
	Content    string   `json:"content,omitempty"`
	FailedURLs []string `json:"failedUrls"`
	RequestID  string   `json:"requestId,omitempty"`
}

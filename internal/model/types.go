package model

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Page is one extracted text unit of a source document.
type Page struct {
	Source string `json:"source"`
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Chunk is a contiguous span of a page, ready to be embedded and stored.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Index     int       `json:"chunk_index"`
	Embedding []float32 `json:"-"`
}

// Match is a chunk returned by a similarity query, in index order.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

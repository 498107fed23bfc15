package api

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string         `json:"message" binding:"required,min=1,max=2000"`
	ConversationID string         `json:"conversation_id"`
	CustomerID     string         `json:"customer_id"`
	MessageType    string         `json:"message_type"`
	Priority       string         `json:"priority"`
	Context        map[string]any `json:"context"`
}

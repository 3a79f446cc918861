package sqlite

import "time"

// TextMemory is a stored text memory row joined with its conversation.
type TextMemory struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Key            string    `json:"key,omitempty"`
	Content        string    `json:"content"`
	ContentHash    string    `json:"content_hash"`
	Keywords       []string  `json:"keywords,omitempty"`
	Importance     float64   `json:"importance"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id,omitempty"`
}

// ImageMemory is a stored image memory row joined with its conversation.
type ImageMemory struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Path           string    `json:"path"`
	Hash           string    `json:"hash"`
	Description    string    `json:"description,omitempty"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	FileSize       int64     `json:"file_size"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id"`
}

// SemanticLink relates two memories across modalities.
type SemanticLink struct {
	MemoryID1  int64   `json:"memory_id_1"`
	MemoryID2  int64   `json:"memory_id_2"`
	Modality1  string  `json:"modality_1"`
	Modality2  string  `json:"modality_2"`
	Similarity float64 `json:"similarity"`
	LinkType   string  `json:"link_type"`
}

// Context is a time-windowed snapshot of a user's recent memories.
type Context struct {
	TextMemories       []TextMemory  `json:"text_memories"`
	ImageMemories      []ImageMemory `json:"image_memories"`
	TotalConversations int           `json:"total_conversations"`
}

// UserStats summarizes a user's stored memories.
type UserStats struct {
	TextMemories       int       `json:"text_memories"`
	ImageMemories      int       `json:"image_memories"`
	TotalConversations int       `json:"total_conversations"`
	FirstInteraction   time.Time `json:"first_interaction,omitempty"`
	LastActivity       time.Time `json:"last_activity,omitempty"`
}

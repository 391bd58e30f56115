package model

import "time"

// ExportVersion is the current export document schema version.
const ExportVersion = 1

// ExportDocument is the JSON export of a conversation and its full message
// tree. Round-tripping through import preserves message order, roles, and
// branch structure exactly.
type ExportDocument struct {
	Version      int          `json:"version"`
	ExportedAt   time.Time    `json:"exported_at"`
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

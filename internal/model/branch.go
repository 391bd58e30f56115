package model

import "time"

// BranchSummary describes one named branch of a conversation's message tree.
// Branches are derived, not stored: messages sharing a branch name form a
// branch, and the branch's leaf is its newest message.
type BranchSummary struct {
	Name          string    `json:"name"`
	LeafMessageID string    `json:"leaf_message_id"`
	MessageCount  int       `json:"message_count"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// SwitchBranchRequest selects which branch of the tree is active.
type SwitchBranchRequest struct {
	BranchName string `json:"branch_name"`
}

// ListBranchesResponse is the response for listing branches.
type ListBranchesResponse struct {
	Branches []BranchSummary `json:"branches"`
}

package store

import (
	"sort"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// pathToRoot walks parent pointers from leafID up to the root and returns the
// visited messages in chronological (root-to-leaf) order. Unknown parents and
// cycles terminate the walk rather than failing: a truncated path is still a
// valid activation target for whatever part of the tree is reachable.
func pathToRoot(byID map[string]*model.Message, leafID string) []*model.Message {
	path := make([]*model.Message, 0, len(byID))
	seen := make(map[string]bool)
	nodeID := leafID

	for nodeID != "" {
		node, ok := byID[nodeID]
		if !ok {
			break
		}
		if seen[nodeID] {
			break
		}
		seen[nodeID] = true
		path = append(path, node)
		if node.ParentMessageID == nil {
			break
		}
		nodeID = *node.ParentMessageID
	}

	// reverse to chronological order from root to leaf
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// indexMessages builds an ID index over a message slice.
func indexMessages(messages []*model.Message) map[string]*model.Message {
	byID := make(map[string]*model.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}
	return byID
}

// branchLeaf returns the newest message on the named branch, or nil when the
// branch has no messages. Branch membership follows Message.Branch, so the
// empty name and "main" are the same branch.
func branchLeaf(messages []*model.Message, branchName string) *model.Message {
	if branchName == "" {
		branchName = model.MainBranch
	}

	var leaf *model.Message
	for _, m := range messages {
		if m.Branch() != branchName {
			continue
		}
		if leaf == nil || m.CreatedAt.After(leaf.CreatedAt) ||
			(m.CreatedAt.Equal(leaf.CreatedAt) && m.ID > leaf.ID) {
			leaf = m
		}
	}
	return leaf
}

// activeKeepSet computes the set of message IDs that must be active after
// switching to branchName: the root-to-leaf path of the branch's leaf.
func activeKeepSet(messages []*model.Message, branchName string) (map[string]bool, *model.Message) {
	leaf := branchLeaf(messages, branchName)
	if leaf == nil {
		return nil, nil
	}

	keep := make(map[string]bool)
	for _, m := range pathToRoot(indexMessages(messages), leaf.ID) {
		keep[m.ID] = true
	}
	return keep, leaf
}

// buildBranchSummaries derives the virtual branch list from a message set.
func buildBranchSummaries(messages []*model.Message) []model.BranchSummary {
	type agg struct {
		leaf  *model.Message
		first *model.Message
		count int
	}

	groups := make(map[string]*agg)
	for _, m := range messages {
		name := m.Branch()
		g, ok := groups[name]
		if !ok {
			g = &agg{}
			groups[name] = g
		}
		g.count++
		if g.leaf == nil || m.CreatedAt.After(g.leaf.CreatedAt) {
			g.leaf = m
		}
		if g.first == nil || m.CreatedAt.Before(g.first.CreatedAt) {
			g.first = m
		}
	}

	summaries := make([]model.BranchSummary, 0, len(groups))
	for name, g := range groups {
		summaries = append(summaries, model.BranchSummary{
			Name:          name,
			LeafMessageID: g.leaf.ID,
			MessageCount:  g.count,
			// A branch is active when its leaf terminates the active path;
			// a shared prefix being active does not make the branch active.
			IsActive:  g.leaf.IsActiveBranch,
			CreatedAt: g.first.CreatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		// main first, then oldest branch first
		if summaries[i].Name == model.MainBranch {
			return true
		}
		if summaries[j].Name == model.MainBranch {
			return false
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	return summaries
}

// sortChronological orders messages by creation time, breaking ties by ID so
// ordering is stable across stores.
func sortChronological(messages []model.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

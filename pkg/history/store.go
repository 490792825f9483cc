// Package history stores per-thread agent conversations. Histories are keyed
// by (agent, threadID) so the context and generator agents never see each
// other's turns, and writes replace the whole thread rather than appending.
package history

import (
	"context"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// Store is the message history contract shared by both agents.
//
// Get never returns an empty slice: a thread with no stored history yields
// the single placeholder turn from models.NoHistoryPlaceholder, so prompt
// assembly can treat every thread uniformly.
type Store interface {
	// Get returns the full history for an agent's thread.
	Get(ctx context.Context, agent, threadID string) ([]models.Message, error)

	// Set replaces the full history for an agent's thread. Concurrent
	// writers to the same thread are serialized by optimistic concurrency;
	// a writer that lost the race retries against the fresh state.
	Set(ctx context.Context, agent, threadID string, messages []models.Message) error
}

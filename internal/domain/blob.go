package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ArchiveReport summarizes one archive run for an agent.
type ArchiveReport struct {
	AgentID   string    `json:"agent_id"`
	Positions int       `json:"positions"`
	Trades    int       `json:"trades"`
	Paths     []string  `json:"paths"`
	Before    time.Time `json:"before"`
}

// Archiver exports an agent's closed positions and trade history to cold
// storage.
type Archiver interface {
	ArchiveAgent(ctx context.Context, agentID string, before time.Time) (ArchiveReport, error)
}

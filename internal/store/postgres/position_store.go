package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, agent_id, token_mint, quantity,
	entry_value_native, entry_price, realized_pnl_native, targets_hit,
	opened_at, closed_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var targets []byte

	err := row.Scan(
		&p.ID, &p.AgentID, &p.TokenMint, &p.Quantity,
		&p.EntryValueNative, &p.EntryPrice, &p.RealizedPnLNative, &targets,
		&p.OpenedAt, &p.ClosedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &p.TargetsHit); err != nil {
			return domain.Position{}, fmt.Errorf("decode targets_hit: %w", err)
		}
	}
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	positions := []domain.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func encodeTargets(targets []int) ([]byte, error) {
	if targets == nil {
		targets = []int{}
	}
	return json.Marshal(targets)
}

// Create inserts a new position. The partial unique index on open pairs
// rejects a second open position for the same agent and token.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	targets, err := encodeTargets(p.TargetsHit)
	if err != nil {
		return fmt.Errorf("postgres: encode targets for %s: %w", p.ID, err)
	}

	const query = `
		INSERT INTO positions (
			id, agent_id, token_mint, quantity,
			entry_value_native, entry_price, realized_pnl_native, targets_hit,
			opened_at, closed_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.AgentID, p.TokenMint, p.Quantity,
		p.EntryValueNative, p.EntryPrice, p.RealizedPnLNative, targets,
		p.OpenedAt, p.ClosedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	targets, err := encodeTargets(p.TargetsHit)
	if err != nil {
		return fmt.Errorf("postgres: encode targets for %s: %w", p.ID, err)
	}

	const query = `
		UPDATE positions SET
			quantity            = $2,
			entry_value_native  = $3,
			entry_price         = $4,
			realized_pnl_native = $5,
			targets_hit         = $6,
			closed_at           = $7,
			updated_at          = $8
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Quantity,
		p.EntryValueNative, p.EntryPrice, p.RealizedPnLNative, targets,
		p.ClosedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// GetOpen returns the open position for the pair or domain.ErrNotFound.
func (s *PositionStore) GetOpen(ctx context.Context, agentID, tokenMint string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE agent_id = $1 AND token_mint = $2 AND closed_at IS NULL`,
		agentID, tokenMint)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: open position %s: %w", domain.PositionKey(agentID, tokenMint), domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: get open position %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}
	return p, nil
}

// List returns positions matching filter, oldest first.
func (s *PositionStore) List(ctx context.Context, filter domain.PositionFilter) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE 1=1`
	args := []any{}

	if filter.AgentID != "" {
		args = append(args, filter.AgentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND closed_at IS NULL"
	}
	query += " ORDER BY opened_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// ListClosed returns an agent's closed positions, most recently closed first.
func (s *PositionStore) ListClosed(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.Position, error) {
	query, args := withListOpts(
		`SELECT `+positionSelectCols+` FROM positions WHERE agent_id = $1 AND closed_at IS NOT NULL`,
		[]any{agentID}, "closed_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed positions: %w", err)
	}
	return positions, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)

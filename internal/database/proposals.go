package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oceanledger/bluecarbon/internal/proposal"
)

// ProposalStore is the direct-Postgres proposal.Store implementation.
type ProposalStore struct {
	conn *sqlx.DB
}

var _ proposal.Store = (*ProposalStore)(nil)

// NewProposalStore creates a proposal store on the shared handle.
func NewProposalStore(db *DB) *ProposalStore {
	return &ProposalStore{conn: db.conn}
}

// Insert stores one proposal row. The GHG measurement payload is kept as a
// single JSONB column.
func (s *ProposalStore) Insert(ctx context.Context, p *proposal.Proposal) (*proposal.Proposal, error) {
	ghg, err := json.Marshal(p.GHGData)
	if err != nil {
		return nil, fmt.Errorf("encode ghg data: %w", err)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	const query = `
		INSERT INTO blue_carbon_projects (
			id, user_id, wallet_address, project_name, organization,
			contact_email, description, ecosystem_type, country, region,
			latitude, longitude, area_hectares, start_date, duration_years,
			estimated_credits, ghg_data, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
		RETURNING id, created_at`

	var (
		returnedID string
		createdAt  time.Time
	)
	err = s.conn.QueryRowxContext(ctx, query,
		id, p.UserID, p.WalletAddress, p.ProjectName, nullString(p.Organization),
		nullString(p.ContactEmail), nullString(p.Description), nullString(p.EcosystemType),
		nullString(p.Country), nullString(p.Region),
		p.Latitude, p.Longitude, p.AreaHectares, nullString(p.StartDate), p.DurationYears,
		p.EstimatedCredits, ghg, p.Status,
	).Scan(&returnedID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert proposal: %w", err)
	}

	stored := *p
	stored.ID = returnedID
	stored.CreatedAt = createdAt
	return &stored, nil
}

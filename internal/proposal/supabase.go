package proposal

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	supa "github.com/oceanledger/bluecarbon/supabase/client"
)

// SupabaseStore persists proposals through the Supabase REST API.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a Supabase-backed proposal store.
func NewSupabaseStore(client *supa.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// Insert stores one proposal row. The generated ID is read back from the
// PostgREST representation body.
func (s *SupabaseStore) Insert(ctx context.Context, p *Proposal) (*Proposal, error) {
	resp, err := s.client.From(ProjectsTable).ExecuteInsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert proposal: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	stored := *p
	if id := gjson.GetBytes(resp.Body, "0.id"); id.Exists() {
		stored.ID = id.String()
	} else {
		stored.ID = gjson.GetBytes(resp.Body, "id").String()
	}
	return &stored, nil
}

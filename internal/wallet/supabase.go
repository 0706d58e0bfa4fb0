package wallet

import (
	"context"
	"fmt"
	"time"

	supa "github.com/oceanledger/bluecarbon/supabase/client"
)

// WalletsTable is the Supabase table holding wallet registrations.
const WalletsTable = "user_wallets"

// SupabaseStore persists wallets through the Supabase REST API.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a Supabase-backed wallet store.
func NewSupabaseStore(client *supa.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// walletRow is the wire shape of a user_wallets row.
type walletRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Address   string `json:"wallet_address"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (r walletRow) toWallet() *Wallet {
	w := &Wallet{
		ID:      r.ID,
		UserID:  r.UserID,
		Address: r.Address,
		Label:   r.Label,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		w.CreatedAt = t
	}
	return w
}

// Lookup returns the most recent wallet registered for a user.
func (s *SupabaseStore) Lookup(ctx context.Context, userID string) (*Wallet, error) {
	resp, err := s.client.From(WalletsTable).
		Select("id,user_id,wallet_address,label,created_at").
		Eq("user_id", userID).
		Order("created_at", false).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var rows []walletRow
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("decode wallets: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	return rows[0].toWallet(), nil
}

// Insert stores a new wallet registration and returns the stored row.
func (s *SupabaseStore) Insert(ctx context.Context, w *Wallet) (*Wallet, error) {
	resp, err := s.client.From(WalletsTable).ExecuteInsert(ctx, walletRow{
		UserID:  w.UserID,
		Address: w.Address,
		Label:   w.Label,
	})
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}

	var rows []walletRow
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("decode inserted wallet: %w", err)
	}
	if len(rows) == 0 {
		// Prefer: return=representation should always echo the row.
		return w, nil
	}

	return rows[0].toWallet(), nil
}

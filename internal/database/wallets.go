package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oceanledger/bluecarbon/internal/wallet"
)

// WalletStore is the direct-Postgres wallet.Store implementation.
type WalletStore struct {
	conn *sqlx.DB
}

var _ wallet.Store = (*WalletStore)(nil)

// NewWalletStore creates a wallet store on the shared handle.
func NewWalletStore(db *DB) *WalletStore {
	return &WalletStore{conn: db.conn}
}

type walletRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Address   string         `db:"wallet_address"`
	Label     sql.NullString `db:"label"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

func (r walletRow) toWallet() *wallet.Wallet {
	w := &wallet.Wallet{
		ID:      r.ID,
		UserID:  r.UserID,
		Address: r.Address,
		Label:   r.Label.String,
	}
	if r.CreatedAt.Valid {
		w.CreatedAt = r.CreatedAt.Time
	}
	return w
}

// Lookup returns the most recent wallet registered for a user.
func (s *WalletStore) Lookup(ctx context.Context, userID string) (*wallet.Wallet, error) {
	const query = `
		SELECT id, user_id, wallet_address, label, created_at
		FROM user_wallets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var row walletRow
	if err := s.conn.GetContext(ctx, &row, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, wallet.ErrNotFound
		}
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	return row.toWallet(), nil
}

// Insert stores a new wallet registration.
func (s *WalletStore) Insert(ctx context.Context, w *wallet.Wallet) (*wallet.Wallet, error) {
	const query = `
		INSERT INTO user_wallets (id, user_id, wallet_address, label)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, wallet_address, label, created_at`

	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}

	var row walletRow
	err := s.conn.GetContext(ctx, &row, query, id, w.UserID, w.Address, nullString(w.Label))
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	return row.toWallet(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

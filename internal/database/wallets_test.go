package database

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/oceanledger/bluecarbon/internal/wallet"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWalletStore_Lookup(t *testing.T) {
	conn, mock := newMockDB(t)
	store := &WalletStore{conn: conn}

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, wallet_address, label, created_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "wallet_address", "label", "created_at"},
		).AddRow("w-1", "user-1", "0xABCDEF1234567890abcdef", "main", now))

	w, err := store.Lookup(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if w.Address != "0xABCDEF1234567890abcdef" {
		t.Errorf("Address = %q", w.Address)
	}
	if w.Label != "main" {
		t.Errorf("Label = %q", w.Label)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWalletStore_Lookup_NotFound(t *testing.T) {
	conn, mock := newMockDB(t)
	store := &WalletStore{conn: conn}

	mock.ExpectQuery("SELECT id, user_id, wallet_address, label, created_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "wallet_address", "label", "created_at"},
		))

	_, err := store.Lookup(context.Background(), "user-1")
	if err != wallet.ErrNotFound {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestWalletStore_Insert(t *testing.T) {
	conn, mock := newMockDB(t)
	store := &WalletStore{conn: conn}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO user_wallets").
		WithArgs(sqlmock.AnyArg(), "user-1", "0xABCDEF1234567890abcdef", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "wallet_address", "label", "created_at"},
		).AddRow("w-9", "user-1", "0xABCDEF1234567890abcdef", nil, now))

	w, err := store.Insert(context.Background(), &wallet.Wallet{
		UserID:  "user-1",
		Address: "0xABCDEF1234567890abcdef",
	})
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if w.ID != "w-9" {
		t.Errorf("ID = %q, want generated row id", w.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

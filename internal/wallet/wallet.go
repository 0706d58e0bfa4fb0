// Package wallet implements the wallet status service: lookup of registered
// wallet addresses, the requirement-message catalog, and registration of new
// addresses from the connection flow.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oceanledger/bluecarbon/internal/config"
	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
)

// Status is the result of a wallet status check.
type Status struct {
	HasWallet     bool   `json:"has_wallet"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Wallet is a registered wallet row.
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Address   string    `json:"wallet_address"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned by stores when no wallet row exists for a user.
var ErrNotFound = fmt.Errorf("wallet not found")

// Store persists wallet registrations.
type Store interface {
	// Lookup returns the wallet registered for a user, or ErrNotFound.
	Lookup(ctx context.Context, userID string) (*Wallet, error)
	// Insert stores a new wallet registration.
	Insert(ctx context.Context, w *Wallet) (*Wallet, error)
}

// Cache is a read-through cache for wallet statuses.
type Cache interface {
	Get(ctx context.Context, userID string) (*Status, bool)
	Set(ctx context.Context, userID string, status Status)
	Delete(ctx context.Context, userID string)
	// Len returns the number of cached entries, or -1 if unknown.
	Len(ctx context.Context) int
}

// Service checks wallet status and explains why a wallet is required.
type Service interface {
	// Check returns the wallet status for a user. forceRefresh bypasses
	// the cache. A returned error means the lookup itself failed; callers
	// must treat that as "requirement not satisfied".
	Check(ctx context.Context, userID string, forceRefresh bool) (Status, error)
	// RequirementMessage returns the explanation for a requirement
	// context. Always non-empty.
	RequirementMessage(context string) string
}

// Registrar registers wallet addresses from the connection flow.
type Registrar interface {
	Register(ctx context.Context, userID, address, label string) (*Wallet, error)
}

// StatusService is the default Service and Registrar implementation.
type StatusService struct {
	store    Store
	cache    Cache
	messages *config.MessageCatalog
	logger   *logging.Logger
}

// NewStatusService creates the wallet status service. cache may be nil.
func NewStatusService(store Store, cache Cache, messages *config.MessageCatalog, logger *logging.Logger) *StatusService {
	if cache == nil {
		cache = noopCache{}
	}
	if messages == nil {
		messages = config.DefaultMessageCatalog()
	}
	return &StatusService{
		store:    store,
		cache:    cache,
		messages: messages,
		logger:   logger,
	}
}

// Check returns the wallet status for a user.
func (s *StatusService) Check(ctx context.Context, userID string, forceRefresh bool) (Status, error) {
	if userID == "" {
		return Status{}, fmt.Errorf("user ID is required")
	}

	if !forceRefresh {
		if cached, ok := s.cache.Get(ctx, userID); ok {
			return *cached, nil
		}
	}

	w, err := s.store.Lookup(ctx, userID)
	if err != nil {
		if err == ErrNotFound {
			status := Status{HasWallet: false}
			s.cache.Set(ctx, userID, status)
			metrics.RecordWalletCheck("missing")
			return status, nil
		}
		metrics.RecordWalletCheck("error")
		return Status{}, fmt.Errorf("wallet lookup: %w", err)
	}

	status := Status{HasWallet: true, WalletAddress: w.Address}
	s.cache.Set(ctx, userID, status)
	metrics.RecordWalletCheck("connected")
	return status, nil
}

// RequirementMessage returns the explanation for a requirement context.
func (s *StatusService) RequirementMessage(context string) string {
	return s.messages.Message(context)
}

// Register stores a wallet address for a user and invalidates the cached
// status so the next check sees it.
func (s *StatusService) Register(ctx context.Context, userID, address, label string) (*Wallet, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	w, err := s.store.Insert(ctx, &Wallet{
		UserID:  userID,
		Address: address,
		Label:   label,
	})
	if err != nil {
		return nil, fmt.Errorf("register wallet: %w", err)
	}

	s.cache.Set(ctx, userID, Status{HasWallet: true, WalletAddress: w.Address})
	metrics.RecordWalletRegistration()

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": userID,
	}).Info("wallet registered")

	return w, nil
}

// ValidateAddress performs shallow validation of a wallet address.
// The connection widget owns real verification; this only rejects values
// that cannot possibly be addresses.
func ValidateAddress(address string) error {
	if len(address) < 14 {
		return fmt.Errorf("wallet address too short")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("wallet address must start with 0x")
	}
	for _, r := range address[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return fmt.Errorf("wallet address contains invalid character %q", r)
		}
	}
	return nil
}

// noopCache is used when no cache backend is configured.
type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Status, bool) { return nil, false }
func (noopCache) Set(context.Context, string, Status)         {}
func (noopCache) Delete(context.Context, string)              {}
func (noopCache) Len(context.Context) int                     { return -1 }

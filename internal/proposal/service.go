package proposal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
)

// noticeTTL is how long the success notice stays visible.
const noticeTTL = 5 * time.Second

// Store persists proposals. Insert returns the stored row with its
// generated ID filled in.
type Store interface {
	Insert(ctx context.Context, p *Proposal) (*Proposal, error)
}

// Receipt confirms a stored proposal.
type Receipt struct {
	ProposalID  string `json:"proposal_id"`
	ProjectName string `json:"project_name"`
	Message     string `json:"message"`
}

// Service handles proposal submission and the transient success notice.
type Service struct {
	store  Store
	logger *logging.Logger

	mu        sync.Mutex
	notice    string
	noticeGen int
	clearTTL  time.Duration
}

// NewService creates the proposal service.
func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		clearTTL: noticeTTL,
	}
}

// Submit validates and stores one proposal. The wallet address travels
// verbatim from the gate callback into the stored row. A storage failure is
// recoverable: the caller keeps its form state and may retry.
func (s *Service) Submit(ctx context.Context, userID, walletAddress string, in *Input) (*Receipt, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if walletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}
	if err := in.Validate(); err != nil {
		metrics.RecordProposalSubmission("rejected", 0)
		return nil, err
	}

	p := in.Coerce(userID, walletAddress)

	start := time.Now()
	stored, err := s.store.Insert(ctx, p)
	if err != nil {
		metrics.RecordProposalSubmission("error", time.Since(start))
		s.logger.WithContext(ctx).WithError(err).Error("proposal insert failed")
		return nil, fmt.Errorf("store proposal: %w", err)
	}
	metrics.RecordProposalSubmission("accepted", time.Since(start))

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"proposal_id":  stored.ID,
		"project_name": stored.ProjectName,
	}).Info("proposal submitted")

	s.setNotice(fmt.Sprintf("Proposal %q submitted for review.", p.ProjectName))

	return &Receipt{
		ProposalID:  stored.ID,
		ProjectName: stored.ProjectName,
		Message:     "Proposal submitted for review.",
	}, nil
}

// Notice returns the current success notice, or "" once it has expired.
func (s *Service) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// setNotice installs a success notice that clears itself after the TTL.
// A newer notice supersedes the pending clear of an older one.
func (s *Service) setNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.noticeGen++
	gen := s.noticeGen
	ttl := s.clearTTL
	s.mu.Unlock()

	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		if s.noticeGen == gen {
			s.notice = ""
		}
		s.mu.Unlock()
	})
}

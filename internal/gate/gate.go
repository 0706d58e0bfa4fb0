// Package gate implements the wallet requirement gate: content that needs a
// connected wallet is never revealed to a user lacking one, and the user is
// given a path to connect.
//
// The gate is a small state machine re-derived from the session provider and
// wallet service on every Start and on every session change:
//
//	CheckingSession -> redirect           (no session)
//	CheckingSession -> CheckingWallet     (session present)
//	CheckingWallet  -> Blocked            (no wallet, or lookup failed)
//	CheckingWallet  -> Unblocked          (wallet registered)
//	Blocked         -> CheckingWallet     (user-triggered refresh)
//	Blocked         -> Unblocked          (wallet-saved notification, trusted)
//	any             -> redirect           (session stream emits nil)
package gate

import (
	"context"
	"sync"

	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
	"github.com/oceanledger/bluecarbon/internal/session"
	"github.com/oceanledger/bluecarbon/internal/wallet"
)

// State is the internal gate state.
type State int

const (
	// StateCheckingSession is the initial state.
	StateCheckingSession State = iota
	// StateUnauthenticated means no session was found; a redirect has
	// been requested and the gate will not unblock until a new session
	// arrives on the stream.
	StateUnauthenticated
	// StateCheckingWallet means a session exists and the wallet lookup
	// is in flight.
	StateCheckingWallet
	// StateBlocked means the user has a session but no wallet.
	StateBlocked
	// StateUnblocked means the wallet requirement is satisfied.
	StateUnblocked
)

func (s State) String() string {
	switch s {
	case StateCheckingSession:
		return "checking_session"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCheckingWallet:
		return "checking_wallet"
	case StateBlocked:
		return "blocked"
	case StateUnblocked:
		return "unblocked"
	default:
		return "unknown"
	}
}

// Config configures a Gate. Sessions and Wallets are required.
type Config struct {
	Sessions session.Provider
	Wallets  wallet.Service

	// Context selects the requirement message ("project_creation", ...).
	Context string
	// ActionName names the blocked action in the blocking message.
	ActionName string
	// ShowWalletConnection controls whether the blocked view offers the
	// connection widget.
	ShowWalletConnection bool

	// OnWalletConnected is invoked with the address whenever the wallet
	// requirement becomes satisfied. Fire-and-forget.
	OnWalletConnected func(address string)
	// OnRedirect is invoked when the gate finds no session. The host
	// owns the actual navigation.
	OnRedirect func()

	Logger *logging.Logger
}

// Gate guards content behind the wallet requirement.
type Gate struct {
	mu  sync.Mutex
	cfg Config

	ctx     context.Context
	state   State
	session *session.Session
	status  wallet.Status
	err     string

	// epoch is bumped on every session change; wallet check results are
	// discarded unless the epoch they were issued under is still current.
	epoch uint64

	unsub  session.Unsubscribe
	closed bool
}

// New creates a gate. Call Start to begin the session check.
func New(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefault()
	}
	return &Gate{
		cfg:   cfg,
		state: StateCheckingSession,
	}
}

// Start performs the initial session check and subscribes to session
// changes. The subscription is released by Close on every teardown path.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	g.ctx = ctx
	g.mu.Unlock()

	unsub, err := g.cfg.Sessions.Watch(g.onSessionChange)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		unsub()
		return nil
	}
	g.unsub = unsub
	g.mu.Unlock()

	sess, err := g.cfg.Sessions.Current(ctx)
	if err != nil {
		// Fail closed: an unreadable session is no session.
		g.cfg.Logger.WithError(err).Warn("session check failed")
		g.redirect()
		return nil
	}
	if sess == nil {
		g.redirect()
		return nil
	}

	g.mu.Lock()
	g.session = sess
	epoch := g.epoch
	g.mu.Unlock()

	g.checkWallet(ctx, sess, epoch, false)
	return nil
}

// Close releases the session subscription. Safe to call more than once and
// on a gate whose Start failed.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	unsub := g.unsub
	g.unsub = nil
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Refresh re-runs the wallet check, bypassing any cached status. It is the
// only retry path; the gate never retries on its own.
func (g *Gate) Refresh(ctx context.Context) {
	g.mu.Lock()
	sess := g.session
	epoch := g.epoch
	g.mu.Unlock()

	if sess == nil {
		return
	}
	g.checkWallet(ctx, sess, epoch, true)
}

// WalletSaved applies a successful save reported by the connection widget.
// The address is trusted without re-verification.
func (g *Gate) WalletSaved(address string) {
	g.mu.Lock()
	if g.session == nil || g.closed {
		g.mu.Unlock()
		return
	}
	g.status = wallet.Status{HasWallet: true, WalletAddress: address}
	g.err = ""
	g.setStateLocked(StateUnblocked)
	cb := g.cfg.OnWalletConnected
	g.mu.Unlock()

	if cb != nil {
		cb(address)
	}
}

// View returns the current render decision. Exactly one of the three kinds
// is produced for any state.
func (g *Gate) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateBlocked:
		return View{
			Kind: ViewBlocked,
			Blocked: &BlockedView{
				Explanation: g.cfg.Wallets.RequirementMessage(g.cfg.Context),
				ActionName:  g.cfg.ActionName,
				Error:       g.err,
				ShowConnect: g.cfg.ShowWalletConnection,
			},
		}
	case StateUnblocked:
		return View{
			Kind: ViewUnblocked,
			Unblocked: &UnblockedView{
				WalletAddress: g.status.WalletAddress,
				MaskedAddress: MaskAddress(g.status.WalletAddress),
			},
		}
	default:
		return View{Kind: ViewLoading}
	}
}

// State returns the internal state, for logging and tests.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// RequirementMessage returns the explanation for the configured context.
func (g *Gate) RequirementMessage() string {
	return g.cfg.Wallets.RequirementMessage(g.cfg.Context)
}

// onSessionChange handles session stream events. A nil session redirects
// from any state; a new session restarts the wallet check from scratch.
func (g *Gate) onSessionChange(sess *session.Session) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.epoch++
	epoch := g.epoch

	if sess == nil {
		g.session = nil
		g.status = wallet.Status{}
		g.err = ""
		g.mu.Unlock()
		g.redirect()
		return
	}

	g.session = sess
	ctx := g.ctx
	g.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	g.checkWallet(ctx, sess, epoch, false)
}

// checkWallet runs one wallet check under the given epoch. Results from a
// superseded epoch are discarded so a stale check can never overwrite state
// belonging to a newer session.
func (g *Gate) checkWallet(ctx context.Context, sess *session.Session, epoch uint64, force bool) {
	g.mu.Lock()
	if g.closed || g.epoch != epoch {
		g.mu.Unlock()
		return
	}
	g.setStateLocked(StateCheckingWallet)
	g.mu.Unlock()

	status, err := g.cfg.Wallets.Check(ctx, sess.UserID, force)

	var connected func(string)

	g.mu.Lock()
	if g.closed || g.epoch != epoch {
		g.mu.Unlock()
		return
	}

	switch {
	case err != nil:
		// A failed lookup is "not satisfied"; surface the reason.
		g.cfg.Logger.WithContext(ctx).WithError(err).Warn("wallet status check failed")
		g.status = wallet.Status{}
		g.err = err.Error()
		g.setStateLocked(StateBlocked)
	case status.HasWallet:
		g.status = status
		g.err = ""
		g.setStateLocked(StateUnblocked)
		connected = g.cfg.OnWalletConnected
	default:
		g.status = status
		g.err = ""
		g.setStateLocked(StateBlocked)
	}
	addr := g.status.WalletAddress
	g.mu.Unlock()

	if connected != nil {
		connected(addr)
	}
}

func (g *Gate) redirect() {
	g.mu.Lock()
	g.setStateLocked(StateUnauthenticated)
	cb := g.cfg.OnRedirect
	g.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (g *Gate) setStateLocked(next State) {
	if g.state == next {
		return
	}
	g.state = next
	metrics.RecordGateTransition(next.String())
}

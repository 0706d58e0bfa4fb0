package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oceanledger/bluecarbon/internal/session"
	"github.com/oceanledger/bluecarbon/internal/wallet"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeSessions struct {
	mu       sync.Mutex
	current  *session.Session
	err      error
	watchers map[int]func(*session.Session)
	nextID   int
}

func newFakeSessions(current *session.Session) *fakeSessions {
	return &fakeSessions{
		current:  current,
		watchers: make(map[int]func(*session.Session)),
	}
}

func (f *fakeSessions) Current(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.err
}

func (f *fakeSessions) Watch(cb func(*session.Session)) (session.Unsubscribe, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.watchers[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeSessions) emit(sess *session.Session) {
	f.mu.Lock()
	f.current = sess
	cbs := make([]func(*session.Session), 0, len(f.watchers))
	for _, cb := range f.watchers {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(sess)
	}
}

func (f *fakeSessions) watcherCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

type fakeWallets struct {
	mu      sync.Mutex
	status  map[string]wallet.Status
	err     error
	calls   int
	forced  int
	blockOn map[string]chan struct{}
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{
		status:  make(map[string]wallet.Status),
		blockOn: make(map[string]chan struct{}),
	}
}

func (f *fakeWallets) Check(ctx context.Context, userID string, forceRefresh bool) (wallet.Status, error) {
	f.mu.Lock()
	f.calls++
	if forceRefresh {
		f.forced++
	}
	gate := f.blockOn[userID]
	status := f.status[userID]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return wallet.Status{}, err
	}
	return status, nil
}

func (f *fakeWallets) RequirementMessage(context string) string {
	if context == "project_creation" {
		return "A connected wallet is required to submit a project."
	}
	return "A connected wallet is required to continue."
}

func (f *fakeWallets) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeWallets) forcedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forced
}

func aliceSession() *session.Session {
	return &session.Session{UserID: "alice", Email: "alice@example.org"}
}

// =============================================================================
// Masking
// =============================================================================

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"standard", "0xABCDEF1234567890abcdef", "0xABCDEF...abcdef"},
		{"exactly threshold", "0x123456789012", "0x123456...789012"},
		{"fourteen chars", "0xabcdef123456", "0xabcdef...123456"},
		{"below threshold", "0x12345678901", "0x12345678901"},
		{"long", "0x1234567890abcdef1234567890abcdef12345678", "0x123456...345678"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAddress(tt.address); got != tt.want {
				t.Errorf("MaskAddress(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}

func TestUnblockedViewBanner(t *testing.T) {
	v := &UnblockedView{
		WalletAddress: "0xABCDEF1234567890abcdef",
		MaskedAddress: MaskAddress("0xABCDEF1234567890abcdef"),
	}
	want := "Wallet connected: 0xABCDEF...abcdef"
	if got := v.Banner(); got != want {
		t.Errorf("Banner() = %q, want %q", got, want)
	}
}

// =============================================================================
// Session handling
// =============================================================================

func TestGate_NoSession_Redirects(t *testing.T) {
	sessions := newFakeSessions(nil)
	wallets := newFakeWallets()

	redirected := false
	g := New(Config{
		Sessions:   sessions,
		Wallets:    wallets,
		Context:    "project_creation",
		OnRedirect: func() { redirected = true },
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !redirected {
		t.Error("expected redirect for missing session")
	}
	if got := g.State(); got != StateUnauthenticated {
		t.Errorf("State() = %v, want %v", got, StateUnauthenticated)
	}
	if view := g.View(); view.Kind != ViewLoading {
		t.Errorf("View().Kind = %v, want %v (children must never render)", view.Kind, ViewLoading)
	}
	if wallets.callCount() != 0 {
		t.Errorf("wallet check ran without a session: %d calls", wallets.callCount())
	}
}

func TestGate_SessionLookupError_FailsClosed(t *testing.T) {
	sessions := newFakeSessions(nil)
	sessions.err = errors.New("auth service down")
	wallets := newFakeWallets()

	redirected := false
	g := New(Config{
		Sessions:   sessions,
		Wallets:    wallets,
		OnRedirect: func() { redirected = true },
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !redirected {
		t.Error("expected redirect when session lookup fails")
	}
	if view := g.View(); view.Kind == ViewUnblocked {
		t.Error("gate unblocked despite failed session lookup")
	}
}

func TestGate_SignOut_RedirectsFromUnblocked(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: true, WalletAddress: "0xABCDEF1234567890abcdef"}

	redirected := false
	g := New(Config{
		Sessions:   sessions,
		Wallets:    wallets,
		OnRedirect: func() { redirected = true },
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := g.State(); got != StateUnblocked {
		t.Fatalf("State() = %v, want %v", got, StateUnblocked)
	}

	sessions.emit(nil)

	if !redirected {
		t.Error("expected redirect on sign-out")
	}
	if view := g.View(); view.Kind == ViewUnblocked {
		t.Error("gate still unblocked after sign-out")
	}
}

// =============================================================================
// Wallet check outcomes
// =============================================================================

func TestGate_NoWallet_Blocked(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: false}

	g := New(Config{
		Sessions:             sessions,
		Wallets:              wallets,
		Context:              "project_creation",
		ActionName:           "submit a project",
		ShowWalletConnection: true,
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	view := g.View()
	if view.Kind != ViewBlocked {
		t.Fatalf("View().Kind = %v, want %v", view.Kind, ViewBlocked)
	}
	if view.Unblocked != nil {
		t.Error("blocked view must not carry unblocked content")
	}
	if view.Blocked.Explanation == "" {
		t.Error("blocked view missing explanation")
	}
	if view.Blocked.ActionName != "submit a project" {
		t.Errorf("ActionName = %q, want %q", view.Blocked.ActionName, "submit a project")
	}
	if !view.Blocked.ShowConnect {
		t.Error("connection widget should be offered")
	}
	if view.Blocked.Error != "" {
		t.Errorf("unexpected error on clean miss: %q", view.Blocked.Error)
	}
}

func TestGate_WalletPresent_Unblocked(t *testing.T) {
	addr := "0xABCDEF1234567890abcdef"
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: true, WalletAddress: addr}

	var connected string
	g := New(Config{
		Sessions:          sessions,
		Wallets:           wallets,
		OnWalletConnected: func(a string) { connected = a },
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	view := g.View()
	if view.Kind != ViewUnblocked {
		t.Fatalf("View().Kind = %v, want %v", view.Kind, ViewUnblocked)
	}
	if view.Unblocked.WalletAddress != addr {
		t.Errorf("WalletAddress = %q, want %q", view.Unblocked.WalletAddress, addr)
	}
	if view.Unblocked.MaskedAddress != "0xABCDEF...abcdef" {
		t.Errorf("MaskedAddress = %q, want %q", view.Unblocked.MaskedAddress, "0xABCDEF...abcdef")
	}
	if connected != addr {
		t.Errorf("OnWalletConnected got %q, want %q", connected, addr)
	}
}

func TestGate_LookupFailure_BlockedWithError(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.err = errors.New("wallet lookup: connection refused")

	g := New(Config{
		Sessions:             sessions,
		Wallets:              wallets,
		ShowWalletConnection: true,
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	view := g.View()
	if view.Kind != ViewBlocked {
		t.Fatalf("View().Kind = %v, want %v (failed lookup must not unblock)", view.Kind, ViewBlocked)
	}
	if view.Blocked.Error != "wallet lookup: connection refused" {
		t.Errorf("Error = %q, want the lookup failure surfaced", view.Blocked.Error)
	}
	if !view.Blocked.ShowConnect {
		t.Error("connection widget should still be offered after a failed lookup")
	}
}

// =============================================================================
// Wallet saved and refresh
// =============================================================================

func TestGate_WalletSaved_UnblocksWithoutLookup(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: false}

	var connected string
	g := New(Config{
		Sessions:          sessions,
		Wallets:           wallets,
		OnWalletConnected: func(a string) { connected = a },
	})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := g.State(); got != StateBlocked {
		t.Fatalf("State() = %v, want %v", got, StateBlocked)
	}

	before := wallets.callCount()
	g.WalletSaved("0x1234567890abcdef1234")

	if got := wallets.callCount(); got != before {
		t.Errorf("WalletSaved triggered %d extra lookups, want 0", got-before)
	}
	view := g.View()
	if view.Kind != ViewUnblocked {
		t.Fatalf("View().Kind = %v, want %v", view.Kind, ViewUnblocked)
	}
	if view.Unblocked.WalletAddress != "0x1234567890abcdef1234" {
		t.Errorf("WalletAddress = %q, want the saved address", view.Unblocked.WalletAddress)
	}
	if connected != "0x1234567890abcdef1234" {
		t.Errorf("OnWalletConnected got %q, want the saved address", connected)
	}
}

func TestGate_Refresh_ForcesRecheck(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: false}

	g := New(Config{Sessions: sessions, Wallets: wallets})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	wallets.mu.Lock()
	wallets.status["alice"] = wallet.Status{HasWallet: true, WalletAddress: "0xABCDEF1234567890abcdef"}
	wallets.mu.Unlock()

	g.Refresh(context.Background())

	if got := g.State(); got != StateUnblocked {
		t.Errorf("State() after refresh = %v, want %v", got, StateUnblocked)
	}
	if wallets.forcedCount() != 1 {
		t.Errorf("forced refresh count = %d, want 1", wallets.forcedCount())
	}
}

func TestGate_Refresh_Idempotent(t *testing.T) {
	addr := "0xABCDEF1234567890abcdef"
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: true, WalletAddress: addr}

	g := New(Config{Sessions: sessions, Wallets: wallets})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	g.Refresh(context.Background())

	view := g.View()
	if view.Kind != ViewUnblocked {
		t.Fatalf("View().Kind after refresh = %v, want %v", view.Kind, ViewUnblocked)
	}
	if view.Unblocked.WalletAddress != addr {
		t.Errorf("WalletAddress = %q, want %q", view.Unblocked.WalletAddress, addr)
	}
}

// =============================================================================
// Stale check discard
// =============================================================================

func TestGate_StaleCheckDiscarded(t *testing.T) {
	alice := aliceSession()
	bob := &session.Session{UserID: "bob"}

	sessions := newFakeSessions(nil)
	wallets := newFakeWallets()
	release := make(chan struct{})
	wallets.blockOn["alice"] = release
	wallets.status["alice"] = wallet.Status{HasWallet: false}
	wallets.status["bob"] = wallet.Status{HasWallet: true, WalletAddress: "0xbbbbbbbbbbbbbbbbbbbb"}

	g := New(Config{Sessions: sessions, Wallets: wallets})
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Alice's check parks inside the wallet service.
	done := make(chan struct{})
	go func() {
		sessions.emit(alice)
		close(done)
	}()

	// Wait until the blocked check is in flight.
	deadline := time.After(2 * time.Second)
	for wallets.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for alice's check to start")
		case <-time.After(time.Millisecond):
		}
	}

	// The session moves on to bob; his check completes immediately.
	sessions.emit(bob)
	if got := g.State(); got != StateUnblocked {
		t.Fatalf("State() = %v, want %v for bob", got, StateUnblocked)
	}

	// Alice's stale result must not overwrite bob's.
	close(release)
	<-done

	view := g.View()
	if view.Kind != ViewUnblocked {
		t.Errorf("View().Kind = %v, want %v (stale result applied)", view.Kind, ViewUnblocked)
	}
	if view.Unblocked == nil || view.Unblocked.WalletAddress != "0xbbbbbbbbbbbbbbbbbbbb" {
		t.Error("stale check overwrote the newer session's wallet status")
	}
}

// =============================================================================
// Resource cleanup
// =============================================================================

func TestGate_Close_ReleasesSubscription(t *testing.T) {
	sessions := newFakeSessions(aliceSession())
	wallets := newFakeWallets()
	wallets.status["alice"] = wallet.Status{HasWallet: true, WalletAddress: "0xABCDEF1234567890abcdef"}

	g := New(Config{Sessions: sessions, Wallets: wallets})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if sessions.watcherCount() != 1 {
		t.Fatalf("watcher count = %d, want 1", sessions.watcherCount())
	}

	g.Close()
	if sessions.watcherCount() != 0 {
		t.Errorf("watcher count after Close = %d, want 0", sessions.watcherCount())
	}

	// Close is idempotent.
	g.Close()

	// Events after Close are ignored.
	sessions.emit(nil)
	if got := g.State(); got != StateUnblocked {
		t.Errorf("State() changed after Close: %v", got)
	}
}

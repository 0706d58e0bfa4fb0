// Package api exposes the portal's REST surface: gate evaluation, wallet
// registration, requirement messages, and proposal submission.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oceanledger/bluecarbon/internal/errors"
	"github.com/oceanledger/bluecarbon/internal/gate"
	"github.com/oceanledger/bluecarbon/internal/httputil"
	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
	"github.com/oceanledger/bluecarbon/internal/middleware"
	"github.com/oceanledger/bluecarbon/internal/proposal"
	"github.com/oceanledger/bluecarbon/internal/session"
	"github.com/oceanledger/bluecarbon/internal/wallet"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	wallets   wallet.Service
	registrar wallet.Registrar
	watcher   *wallet.Watcher
	proposals *proposal.Service
	logger    *logging.Logger
}

// NewServer creates the API server.
func NewServer(wallets wallet.Service, registrar wallet.Registrar, watcher *wallet.Watcher, proposals *proposal.Service, logger *logging.Logger) *Server {
	return &Server{
		wallets:   wallets,
		registrar: registrar,
		watcher:   watcher,
		proposals: proposals,
		logger:    logger,
	}
}

// Routes mounts the authenticated API routes on a chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/gate", s.evaluateGate)
	r.Get("/gate/stream", s.streamGate)
	r.Get("/wallet/status", s.walletStatus)
	r.Post("/wallet", s.registerWallet)
	r.Get("/requirements/{context}", s.requirementMessage)
	r.Post("/proposals", s.submitProposal)
	r.Get("/proposals/notice", s.proposalNotice)

	return r
}

// evaluateGate reports the gate decision for the authenticated user. The
// loading state never appears here: a synchronous snapshot is either blocked
// or unblocked.
func (s *Server) evaluateGate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	reqContext := r.URL.Query().Get("context")
	actionName := r.URL.Query().Get("action")
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	status, err := s.wallets.Check(r.Context(), userID, forceRefresh)

	var view gate.View
	switch {
	case err != nil:
		view = gate.View{
			Kind: gate.ViewBlocked,
			Blocked: &gate.BlockedView{
				Explanation: s.wallets.RequirementMessage(reqContext),
				ActionName:  actionName,
				Error:       err.Error(),
				ShowConnect: true,
			},
		}
	case status.HasWallet:
		view = gate.View{
			Kind: gate.ViewUnblocked,
			Unblocked: &gate.UnblockedView{
				WalletAddress: status.WalletAddress,
				MaskedAddress: gate.MaskAddress(status.WalletAddress),
			},
		}
	default:
		view = gate.View{
			Kind: gate.ViewBlocked,
			Blocked: &gate.BlockedView{
				Explanation: s.wallets.RequirementMessage(reqContext),
				ActionName:  actionName,
				ShowConnect: true,
			},
		}
	}

	httputil.WriteJSON(w, http.StatusOK, viewPayload(view))
}

func viewPayload(view gate.View) map[string]interface{} {
	return map[string]interface{}{
		"kind":      view.Kind.String(),
		"blocked":   view.Blocked,
		"unblocked": view.Unblocked,
	}
}

// streamGate serves a live gate over server-sent events. The gate is fed by
// the wallet watcher, so a registration made anywhere, including another
// client seen through the realtime stream, unblocks the gate mid-stream
// without polling.
func (s *Server) streamGate(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteServiceError(w, errors.Internal("Streaming unsupported", nil))
		return
	}

	userID := middleware.GetUserID(r.Context())
	sess := &session.Session{
		UserID:      userID,
		Role:        middleware.GetUserRole(r.Context()),
		AccessToken: middleware.GetAccessToken(r.Context()),
	}

	updates := make(chan struct{}, 1)
	poke := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}

	g := gate.New(gate.Config{
		Sessions:             session.NewStaticProvider(sess),
		Wallets:              s.wallets,
		Context:              r.URL.Query().Get("context"),
		ActionName:           r.URL.Query().Get("action"),
		ShowWalletConnection: true,
		OnWalletConnected:    func(string) { poke() },
		OnRedirect:           poke,
		Logger:               s.logger,
	})
	defer g.Close()

	if err := g.Start(r.Context()); err != nil {
		httputil.WriteServiceError(w, errors.Internal("Gate start failed", err))
		return
	}

	if s.watcher != nil {
		release := s.watcher.Subscribe(userID, g.WalletSaved)
		defer release()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeView := func() bool {
		data, err := json.Marshal(viewPayload(g.View()))
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !writeView() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			if !writeView() {
				return
			}
		}
	}
}

func (s *Server) walletStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	status, err := s.wallets.Check(r.Context(), userID, forceRefresh)
	if err != nil {
		httputil.WriteServiceError(w, errors.Unavailable("Wallet status check failed", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

type registerWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
	Label         string `json:"label"`
}

// registerWallet is the connection-widget backend. On success the watcher
// notifies any live gates for this user so they unblock without polling.
func (s *Server) registerWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req registerWalletRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	registered, err := s.registrar.Register(r.Context(), userID, req.WalletAddress, req.Label)
	if err != nil {
		if svcErr := errors.GetServiceError(err); svcErr != nil {
			httputil.WriteServiceError(w, svcErr)
			return
		}
		httputil.WriteServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	if s.watcher != nil {
		s.watcher.NotifySaved(userID, registered.Address)
	}

	httputil.WriteJSON(w, http.StatusCreated, registered)
}

func (s *Server) requirementMessage(w http.ResponseWriter, r *http.Request) {
	reqContext := chi.URLParam(r, "context")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"context": reqContext,
		"message": s.wallets.RequirementMessage(reqContext),
	})
}

// submitProposal re-checks the wallet requirement server-side before storing
// anything: a request that slipped past a stale client gate still fails
// closed.
func (s *Server) submitProposal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	status, err := s.wallets.Check(r.Context(), userID, false)
	if err != nil {
		httputil.WriteServiceError(w, errors.Unavailable("Wallet status check failed", err))
		return
	}
	if !status.HasWallet {
		httputil.WriteServiceError(w, errors.WalletRequired(
			s.wallets.RequirementMessage("project_creation")))
		return
	}

	var input proposal.Input
	if err := httputil.DecodeJSON(r.Body, &input); err != nil {
		httputil.WriteServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	receipt, err := s.proposals.Submit(r.Context(), userID, status.WalletAddress, &input)
	if err != nil {
		if svcErr := errors.GetServiceError(err); svcErr != nil {
			httputil.WriteServiceError(w, svcErr)
			return
		}
		httputil.WriteServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (s *Server) proposalNotice(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"notice": s.proposals.Notice(),
	})
}

// Healthz is the liveness endpoint, mounted outside the authenticated tree.
func Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MetricsHandler exposes the Prometheus registry.
func MetricsHandler() http.Handler {
	return metrics.Handler()
}

package gate

import "fmt"

// ViewKind discriminates the three mutually exclusive render states.
type ViewKind int

const (
	// ViewLoading is shown while the session or wallet check is in flight.
	ViewLoading ViewKind = iota
	// ViewBlocked is shown when the user has a session but no wallet.
	ViewBlocked
	// ViewUnblocked is shown when the wallet requirement is satisfied.
	ViewUnblocked
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewBlocked:
		return "blocked"
	case ViewUnblocked:
		return "unblocked"
	default:
		return "unknown"
	}
}

// View is the render decision of the gate. Exactly one of Blocked and
// Unblocked is non-nil, and only when Kind selects it.
type View struct {
	Kind      ViewKind       `json:"kind"`
	Blocked   *BlockedView   `json:"blocked,omitempty"`
	Unblocked *UnblockedView `json:"unblocked,omitempty"`
}

// BlockedView carries everything the blocked screen renders.
type BlockedView struct {
	// Explanation is the requirement message for the configured context.
	Explanation string `json:"explanation"`
	// ActionName names the blocked action ("submit a project", ...).
	ActionName string `json:"action_name"`
	// Error is the wallet lookup failure, if any. Empty otherwise.
	Error string `json:"error,omitempty"`
	// ShowConnect controls whether the connection widget is offered.
	ShowConnect bool `json:"show_connect"`
}

// UnblockedView carries the success confirmation banner data.
type UnblockedView struct {
	WalletAddress string `json:"wallet_address"`
	MaskedAddress string `json:"masked_address"`
}

// Banner returns the confirmation line shown above gated content.
func (v *UnblockedView) Banner() string {
	return fmt.Sprintf("Wallet connected: %s", v.MaskedAddress)
}

// maskThreshold is the minimum address length for elision.
const maskThreshold = 14

// MaskAddress elides the middle of a wallet address, keeping the first 8 and
// last 6 characters. Addresses shorter than 14 characters are returned
// unchanged.
func MaskAddress(address string) string {
	if len(address) < maskThreshold {
		return address
	}
	return address[:8] + "..." + address[len(address)-6:]
}

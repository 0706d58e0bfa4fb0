package proposal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oceanledger/bluecarbon/internal/logging"
)

type fakeStore struct {
	inserted *Proposal
	id       string
	err      error
}

func (f *fakeStore) Insert(ctx context.Context, p *Proposal) (*Proposal, error) {
	f.inserted = p
	if f.err != nil {
		return nil, f.err
	}
	stored := *p
	stored.ID = f.id
	return &stored, nil
}

func validInput() *Input {
	return &Input{
		ProjectName:         "Mangrove Bay Restoration",
		Organization:        "Ocean Ledger",
		ContactEmail:        "projects@example.org",
		EcosystemType:       "Mangrove",
		Country:             "Indonesia",
		Region:              "West Papua",
		Latitude:            "-2.533",
		Longitude:           "140.717",
		AreaHectares:        "320.5",
		StartDate:           "2027-01-01",
		DurationYears:       "30",
		BaselineCarbonStock: "142.7",
		SequestrationRate:   "6.3",
		SoilOrganicCarbon:   "88",
		BiomassCarbon:       "not measured",
		MeasurementMethod:   "soil cores",
		MonitoringFrequency: "annual",
		UncertaintyPercent:  "12",
		EstimatedCredits:    "2000",
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"integer", "42", ptr(42)},
		{"decimal", "3.14", ptr(3.14)},
		{"negative", "-2.5", ptr(-2.5)},
		{"whitespace", "  7 ", ptr(7)},
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"garbage", "twelve", nil},
		{"partial", "12abc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNumber(tt.raw)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseNumber(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.raw, *got, *tt.want)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestCoerce_InvalidNumbersBecomeNull(t *testing.T) {
	in := validInput()
	in.Latitude = "somewhere south"
	in.BiomassCarbon = "n/a"

	p := in.Coerce("alice", "0xABCDEF1234567890abcdef")

	if p.Latitude != nil {
		t.Errorf("Latitude = %v, want nil for unparseable input", *p.Latitude)
	}
	if p.GHGData.BiomassCarbon != nil {
		t.Errorf("BiomassCarbon = %v, want nil", *p.GHGData.BiomassCarbon)
	}
	if p.Longitude == nil || *p.Longitude != 140.717 {
		t.Error("valid Longitude lost during coercion")
	}
	if p.WalletAddress != "0xABCDEF1234567890abcdef" {
		t.Errorf("WalletAddress = %q, want the callback address verbatim", p.WalletAddress)
	}
	if p.Status != StatusPending {
		t.Errorf("Status = %q, want %q", p.Status, StatusPending)
	}
	if p.EcosystemType != EcosystemMangrove {
		t.Errorf("EcosystemType = %q, want normalized %q", p.EcosystemType, EcosystemMangrove)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr bool
	}{
		{"valid", func(in *Input) {}, false},
		{"missing project name", func(in *Input) { in.ProjectName = " " }, true},
		{"missing email", func(in *Input) { in.ContactEmail = "" }, true},
		{"missing ecosystem", func(in *Input) { in.EcosystemType = "" }, true},
		{"unknown ecosystem", func(in *Input) { in.EcosystemType = "rainforest" }, true},
		{"bad numbers are fine", func(in *Input) { in.AreaHectares = "lots" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			err := in.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	store := &fakeStore{id: "prop-123"}
	svc := NewService(store, logging.NewDefault())

	receipt, err := svc.Submit(context.Background(), "alice", "0xABCDEF1234567890abcdef", validInput())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if receipt.ProposalID != "prop-123" {
		t.Errorf("ProposalID = %q, want %q", receipt.ProposalID, "prop-123")
	}
	if store.inserted == nil {
		t.Fatal("nothing reached the store")
	}
	if store.inserted.WalletAddress != "0xABCDEF1234567890abcdef" {
		t.Errorf("stored wallet = %q, want the callback address", store.inserted.WalletAddress)
	}
	if store.inserted.GHGData.SequestrationRate == nil || *store.inserted.GHGData.SequestrationRate != 6.3 {
		t.Error("nested measurement payload lost")
	}
	if svc.Notice() == "" {
		t.Error("success notice not set")
	}
}

func TestSubmit_RequiresWallet(t *testing.T) {
	svc := NewService(&fakeStore{}, logging.NewDefault())
	if _, err := svc.Submit(context.Background(), "alice", "", validInput()); err == nil {
		t.Error("Submit() without wallet address succeeded")
	}
}

func TestSubmit_StoreFailureIsRecoverable(t *testing.T) {
	store := &fakeStore{err: errors.New("insert failed")}
	svc := NewService(store, logging.NewDefault())

	_, err := svc.Submit(context.Background(), "alice", "0xABCDEF1234567890abcdef", validInput())
	if err == nil {
		t.Fatal("Submit() error = nil, want storage failure")
	}
	if svc.Notice() != "" {
		t.Error("success notice set despite failed submission")
	}
}

func TestNotice_AutoClears(t *testing.T) {
	store := &fakeStore{id: "prop-1"}
	svc := NewService(store, logging.NewDefault())
	svc.clearTTL = 20 * time.Millisecond

	if _, err := svc.Submit(context.Background(), "alice", "0xABCDEF1234567890abcdef", validInput()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if svc.Notice() == "" {
		t.Fatal("notice missing right after submission")
	}

	deadline := time.After(2 * time.Second)
	for svc.Notice() != "" {
		select {
		case <-deadline:
			t.Fatal("notice never cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNotice_NewerSupersedesOlder(t *testing.T) {
	store := &fakeStore{id: "prop-1"}
	svc := NewService(store, logging.NewDefault())
	svc.clearTTL = 30 * time.Millisecond

	if _, err := svc.Submit(context.Background(), "alice", "0xABCDEF1234567890abcdef", validInput()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	time.Sleep(15 * time.Millisecond)
	in := validInput()
	in.ProjectName = "Seagrass Meadow Recovery"
	in.EcosystemType = "seagrass"
	if _, err := svc.Submit(context.Background(), "alice", "0xABCDEF1234567890abcdef", in); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	// The first notice's timer fires around now; the second must survive it.
	time.Sleep(20 * time.Millisecond)
	if svc.Notice() == "" {
		t.Error("older timer cleared the newer notice")
	}
}

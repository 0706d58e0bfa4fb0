// Package proposal implements submission of blue carbon project proposals:
// form input coercion, the single-insert persistence call, and the transient
// success notice.
package proposal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProjectsTable is the Supabase table holding submitted proposals.
const ProjectsTable = "blue_carbon_projects"

// Ecosystem types accepted by the form.
const (
	EcosystemMangrove  = "mangrove"
	EcosystemSeagrass  = "seagrass"
	EcosystemSaltmarsh = "saltmarsh"
	EcosystemKelp      = "kelp"
)

// Input is the raw form submission. All values arrive as strings; numeric
// fields are coerced by Coerce with invalid values falling back to null.
type Input struct {
	// Organizational
	ProjectName  string `json:"project_name"`
	Organization string `json:"organization"`
	ContactEmail string `json:"contact_email"`
	Description  string `json:"description"`

	// Site and ecology
	EcosystemType string `json:"ecosystem_type"`
	Country       string `json:"country"`
	Region        string `json:"region"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	AreaHectares  string `json:"area_hectares"`
	StartDate     string `json:"start_date"`
	DurationYears string `json:"duration_years"`

	// GHG measurement
	BaselineCarbonStock string `json:"baseline_carbon_stock"`
	SequestrationRate   string `json:"sequestration_rate"`
	SoilOrganicCarbon   string `json:"soil_organic_carbon"`
	BiomassCarbon       string `json:"biomass_carbon"`
	MeasurementMethod   string `json:"measurement_method"`
	MonitoringFrequency string `json:"monitoring_frequency"`
	UncertaintyPercent  string `json:"uncertainty_percent"`
	EstimatedCredits    string `json:"estimated_credits"`
}

// GHGData is the nested measurement payload stored as one JSON column.
type GHGData struct {
	BaselineCarbonStock *float64 `json:"baseline_carbon_stock"`
	SequestrationRate   *float64 `json:"sequestration_rate"`
	SoilOrganicCarbon   *float64 `json:"soil_organic_carbon"`
	BiomassCarbon       *float64 `json:"biomass_carbon"`
	MeasurementMethod   string   `json:"measurement_method,omitempty"`
	MonitoringFrequency string   `json:"monitoring_frequency,omitempty"`
	UncertaintyPercent  *float64 `json:"uncertainty_percent"`
}

// Proposal is the coerced row written to blue_carbon_projects.
type Proposal struct {
	ID            string   `json:"id,omitempty"`
	UserID        string   `json:"user_id"`
	WalletAddress string   `json:"wallet_address"`
	ProjectName   string   `json:"project_name"`
	Organization  string   `json:"organization,omitempty"`
	ContactEmail  string   `json:"contact_email,omitempty"`
	Description   string   `json:"description,omitempty"`
	EcosystemType string   `json:"ecosystem_type,omitempty"`
	Country       string   `json:"country,omitempty"`
	Region        string   `json:"region,omitempty"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	AreaHectares  *float64 `json:"area_hectares"`
	StartDate     string   `json:"start_date,omitempty"`
	DurationYears *float64 `json:"duration_years"`

	EstimatedCredits *float64 `json:"estimated_credits"`
	GHGData          GHGData  `json:"ghg_data"`

	Status string `json:"status,omitempty"`
	// CreatedAt is set by the datastore, never sent on insert.
	CreatedAt time.Time `json:"-"`
}

// StatusPending is the status assigned to every new proposal.
const StatusPending = "pending"

// ParseNumber coerces a form value to a number. Empty or unparseable input
// yields nil rather than an error: the form never blocks submission on a bad
// numeric field, the value is simply stored as null.
func ParseNumber(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Coerce converts raw form input to a storable proposal. walletAddress is
// taken verbatim from the gate's wallet-connected callback.
func (in *Input) Coerce(userID, walletAddress string) *Proposal {
	return &Proposal{
		UserID:        userID,
		WalletAddress: walletAddress,
		ProjectName:   strings.TrimSpace(in.ProjectName),
		Organization:  strings.TrimSpace(in.Organization),
		ContactEmail:  strings.TrimSpace(in.ContactEmail),
		Description:   strings.TrimSpace(in.Description),
		EcosystemType: strings.ToLower(strings.TrimSpace(in.EcosystemType)),
		Country:       strings.TrimSpace(in.Country),
		Region:        strings.TrimSpace(in.Region),
		Latitude:      ParseNumber(in.Latitude),
		Longitude:     ParseNumber(in.Longitude),
		AreaHectares:  ParseNumber(in.AreaHectares),
		StartDate:     strings.TrimSpace(in.StartDate),
		DurationYears: ParseNumber(in.DurationYears),

		EstimatedCredits: ParseNumber(in.EstimatedCredits),
		GHGData: GHGData{
			BaselineCarbonStock: ParseNumber(in.BaselineCarbonStock),
			SequestrationRate:   ParseNumber(in.SequestrationRate),
			SoilOrganicCarbon:   ParseNumber(in.SoilOrganicCarbon),
			BiomassCarbon:       ParseNumber(in.BiomassCarbon),
			MeasurementMethod:   strings.TrimSpace(in.MeasurementMethod),
			MonitoringFrequency: strings.TrimSpace(in.MonitoringFrequency),
			UncertaintyPercent:  ParseNumber(in.UncertaintyPercent),
		},

		Status: StatusPending,
	}
}

// Validate rejects submissions that cannot be stored at all. Numeric fields
// are never validated here; coercion already mapped bad values to null.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.ProjectName) == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.TrimSpace(in.ContactEmail) == "" {
		return fmt.Errorf("contact email is required")
	}
	switch strings.ToLower(strings.TrimSpace(in.EcosystemType)) {
	case EcosystemMangrove, EcosystemSeagrass, EcosystemSaltmarsh, EcosystemKelp:
	case "":
		return fmt.Errorf("ecosystem type is required")
	default:
		return fmt.Errorf("unknown ecosystem type %q", in.EcosystemType)
	}
	return nil
}

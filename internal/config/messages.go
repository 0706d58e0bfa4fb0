package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MessageCatalog maps requirement contexts to the explanation shown when an
// action is blocked pending wallet connection.
type MessageCatalog struct {
	// Default is returned for contexts with no dedicated entry.
	Default string `yaml:"default"`
	// Contexts maps a requirement context key to its explanation.
	Contexts map[string]string `yaml:"contexts"`
}

// LoadMessageCatalog loads the catalog from config/requirements.yaml.
func LoadMessageCatalog() (*MessageCatalog, error) {
	return LoadMessageCatalogFromPath(filepath.Join("config", "requirements.yaml"))
}

// LoadMessageCatalogFromPath loads the catalog from a specific path.
func LoadMessageCatalogFromPath(path string) (*MessageCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirement messages: %w", err)
	}

	var catalog MessageCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse requirement messages: %w", err)
	}

	if catalog.Default == "" {
		catalog.Default = DefaultMessageCatalog().Default
	}

	return &catalog, nil
}

// LoadMessageCatalogOrDefault loads the catalog or returns the built-in
// defaults if the file is not found.
func LoadMessageCatalogOrDefault() *MessageCatalog {
	catalog, err := LoadMessageCatalog()
	if err != nil {
		return DefaultMessageCatalog()
	}
	return catalog
}

// DefaultMessageCatalog returns the built-in requirement messages.
func DefaultMessageCatalog() *MessageCatalog {
	return &MessageCatalog{
		Default: "A connected wallet is required to continue. Please connect your wallet to proceed.",
		Contexts: map[string]string{
			"project_creation":  "A connected wallet is required to submit a blue carbon restoration project. Carbon credits issued for verified projects are delivered to this address.",
			"credit_purchase":   "A connected wallet is required to purchase carbon credits. Purchased credits are transferred to this address.",
			"credit_retirement": "A connected wallet is required to retire carbon credits. Retirement certificates are bound to this address.",
			"payout":            "A connected wallet is required to receive payouts for verified sequestration.",
		},
	}
}

// Message returns the explanation for a context, falling back to the default
// for unknown contexts. The result is always non-empty.
func (c *MessageCatalog) Message(context string) string {
	if msg, ok := c.Contexts[context]; ok && msg != "" {
		return msg
	}
	return c.Default
}

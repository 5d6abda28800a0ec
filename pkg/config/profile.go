package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes one marketplace deployment: its two well-known actors
// and the records seeded into an empty store at startup.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	// BrokerID and RainOracleID are the single well-known broker and rain
	// oracle of this deployment.
	BrokerID     string          `yaml:"broker_id" json:"broker_id"`
	RainOracleID string          `yaml:"rain_oracle_id" json:"rain_oracle_id"`
	Users        []UserSeed      `yaml:"users,omitempty" json:"users,omitempty"`
	Syndicates   []SyndicateSeed `yaml:"syndicates,omitempty" json:"syndicates,omitempty"`
	Agencies     []AgencySeed    `yaml:"agencies,omitempty" json:"agencies,omitempty"`
	Products     []ProductSeed   `yaml:"products,omitempty" json:"products,omitempty"`
}

// UserSeed seeds one PlatformUser.
type UserSeed struct {
	ID          string `yaml:"id" json:"id"`
	Role        string `yaml:"role" json:"role"`
	BalanceBLCK int64  `yaml:"balance_blck" json:"balance_blck"`
}

// SyndicateSeed seeds one Syndicate.
type SyndicateSeed struct {
	ID          string `yaml:"id" json:"id"`
	Manager     string `yaml:"manager" json:"manager"`
	BalanceBLCK int64  `yaml:"balance_blck" json:"balance_blck"`
}

// AgencySeed seeds one InsuranceAgency.
type AgencySeed struct {
	ID                       string  `yaml:"id" json:"id"`
	Broker                   string  `yaml:"broker" json:"broker"`
	AutoSettleClaims         bool    `yaml:"auto_settle_claims" json:"auto_settle_claims"`
	PolicyClaimRainThreshold float64 `yaml:"policy_claim_rain_threshold" json:"policy_claim_rain_threshold"`
	ClaimRule                string  `yaml:"claim_rule,omitempty" json:"claim_rule,omitempty"`
}

// ProductSeed seeds one Product.
type ProductSeed struct {
	ID    string `yaml:"id" json:"id"`
	Terms string `yaml:"terms,omitempty" json:"terms,omitempty"`
}

// LoadProfile reads and validates a deployment profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return &p, nil
}

// Validate checks the profile's internal references.
func (p *Profile) Validate() error {
	if p.BrokerID == "" {
		return fmt.Errorf("broker_id is required")
	}
	if p.RainOracleID == "" {
		return fmt.Errorf("rain_oracle_id is required")
	}
	if p.BrokerID == p.RainOracleID {
		return fmt.Errorf("broker_id and rain_oracle_id must be distinct actors")
	}

	users := make(map[string]bool, len(p.Users))
	for _, u := range p.Users {
		if u.ID == "" {
			return fmt.Errorf("user seed with empty id")
		}
		if users[u.ID] {
			return fmt.Errorf("duplicate user seed %q", u.ID)
		}
		users[u.ID] = true
	}
	for _, s := range p.Syndicates {
		if s.ID == "" {
			return fmt.Errorf("syndicate seed with empty id")
		}
		if s.Manager != "" && len(p.Users) > 0 && !users[s.Manager] {
			return fmt.Errorf("syndicate %q references unseeded manager %q", s.ID, s.Manager)
		}
	}
	for _, a := range p.Agencies {
		if a.ID == "" {
			return fmt.Errorf("agency seed with empty id")
		}
		if a.Broker != p.BrokerID {
			return fmt.Errorf("agency %q must be brokered by the deployment broker %q", a.ID, p.BrokerID)
		}
	}
	return nil
}

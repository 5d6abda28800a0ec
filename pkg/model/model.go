// Package model defines the ledger record types of the marketplace.
//
// All entities are versioned ledger records identified by a string key.
// Records reference each other by key, never by pointer; the registry layer
// owns the actual storage. Dates are canonical UTC strings produced by the
// clock package (second precision) so that persisted records are byte-stable.
package model

// Role tags a PlatformUser and determines which transactions it may submit.
type Role string

const (
	RoleInvestor         Role = "Investor"
	RoleSyndicateManager Role = "SyndicateManager"
	RoleBroker           Role = "Broker"
	RoleRainOracle       Role = "RainOracle"
	RolePolicyHolder     Role = "PolicyHolder"
)

// Kind names a record collection ("registry") on the ledger.
type Kind string

const (
	KindPlatformUser    Kind = "PlatformUser"
	KindSyndicate       Kind = "Syndicate"
	KindInsuranceAgency Kind = "InsuranceAgency"
	KindProduct         Kind = "Product"
	KindPolicy          Kind = "Policy"
	KindClaim           Kind = "Claim"
	KindPayment         Kind = "Payment"
	KindObligation      Kind = "Obligation"
)

// Record is implemented by every ledger record type.
type Record interface {
	RecordID() string
	RecordKind() Kind
}

// PlatformUser is a generic actor on the platform.
type PlatformUser struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	BalanceBLCK int64  `json:"balance_blck"`
}

func (u PlatformUser) RecordID() string { return u.ID }
func (u PlatformUser) RecordKind() Kind { return KindPlatformUser }

// Syndicate is a capital pool controlled by one manager.
type Syndicate struct {
	ID          string `json:"id"`
	Manager     string `json:"manager"` // PlatformUser ID
	BalanceBLCK int64  `json:"balance_blck"`
	// DebtsToInvestors is append-only; each entry is an Obligation ID.
	DebtsToInvestors []string `json:"debts_to_investors"`
	// FundsBoundToAgency holds at most one Obligation ID; a later
	// underwriting overwrites it rather than accumulating.
	FundsBoundToAgency string `json:"funds_bound_to_agency,omitempty"`
}

func (s Syndicate) RecordID() string { return s.ID }
func (s Syndicate) RecordKind() Kind { return KindSyndicate }

// InsuranceAgency sells policies through its broker and is backed by a
// syndicate once underwritten.
type InsuranceAgency struct {
	ID                string `json:"id"`
	Broker            string `json:"broker"`                       // PlatformUser ID
	PolicyUnderwriter string `json:"policy_underwriter,omitempty"` // Syndicate ID
	AutoSettleClaims  bool   `json:"auto_settle_claims"`
	// PolicyClaimRainThreshold is the minimum 24-hour rainfall that makes
	// a claim payable under this agency's policies.
	PolicyClaimRainThreshold float64 `json:"policy_claim_rain_threshold"`
	// ClaimRule is an optional CEL expression over the weather readings,
	// evaluated in addition to the rain threshold. Empty means no rule.
	ClaimRule string `json:"claim_rule,omitempty"`
}

func (a InsuranceAgency) RecordID() string { return a.ID }
func (a InsuranceAgency) RecordKind() Kind { return KindInsuranceAgency }

// Product describes an insurance product; its terms are opaque to the
// transaction layer.
type Product struct {
	ID    string `json:"id"`
	Terms string `json:"terms,omitempty"`
}

func (p Product) RecordID() string { return p.ID }
func (p Product) RecordKind() Kind { return KindProduct }

// Policy is one active weather-indexed insurance contract.
type Policy struct {
	ID            string  `json:"id"`
	CreateDate    string  `json:"create_date"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	CoveredCity   string  `json:"covered_city"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Product       string  `json:"product"`        // Product ID
	PolicyHolder  string  `json:"policy_holder"`  // PlatformUser ID
	IssuingBroker string  `json:"issuing_broker"` // PlatformUser ID
	// Claims is append-only; each entry is a Claim ID.
	Claims []string `json:"claims"`
	// LastClaimDate only moves forward; empty until the first claim.
	LastClaimDate string `json:"last_claim_date,omitempty"`
}

func (p Policy) RecordID() string { return p.ID }
func (p Policy) RecordKind() Kind { return KindPolicy }

// Claim records weather evidence submitted against a policy. It is
// immutable once created; only its linked Payment changes state.
type Claim struct {
	ID                string  `json:"id"`
	ClaimDate         string  `json:"claim_date"`
	RainLast24Hours   float64 `json:"rain_last_24_hours"`
	CloudsLast24Hours float64 `json:"clouds_last_24_hours"`
	HighTempLast24    float64 `json:"high_temp_last_24_hours"`
	HighWaveLast24    float64 `json:"high_wave_last_24_hours"`
	Settlement        string  `json:"settlement"` // Payment ID
}

func (c Claim) RecordID() string { return c.ID }
func (c Claim) RecordKind() Kind { return KindClaim }

// Payment represents a transfer between two actors. Approved gates whether
// it is considered settled; a settlement Payment starts unapproved unless
// the agency auto-settles, and the approved transition is one-way.
type Payment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Date     string `json:"date"`
	From     string `json:"from"`
	To       string `json:"to"`
	Approved bool   `json:"approved"`
}

func (p Payment) RecordID() string { return p.ID }
func (p Payment) RecordKind() Kind { return KindPayment }

// Obligation is a recorded debt between two actors. It never itself moves
// balance; it is always the counterpart of a capital transfer or a
// capacity pledge.
type Obligation struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Date    string `json:"date"`
	Obligee string `json:"obligee"`
}

func (o Obligation) RecordID() string { return o.ID }
func (o Obligation) RecordKind() Kind { return KindObligation }

// SettlementUnit is the fixed amount of every claim settlement Payment,
// regardless of policy or investment size.
const SettlementUnit int64 = 1

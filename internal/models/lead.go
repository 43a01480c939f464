package models

import "time"

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	StatusNew           LeadStatus = "new"
	StatusContacted     LeadStatus = "contacted"
	StatusResponding    LeadStatus = "responding"
	StatusNegotiating   LeadStatus = "negotiating"
	StatusUnderContract LeadStatus = "under_contract"
	StatusArchived      LeadStatus = "archived"
)

// Valid reports whether s is one of the known lifecycle states.
func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusResponding,
		StatusNegotiating, StatusUnderContract, StatusArchived:
		return true
	}
	return false
}

// EstimateSource records where a valuation number came from.
type EstimateSource string

const (
	SourceAI       EstimateSource = "ai"
	SourceManual   EstimateSource = "manual"
	SourceRentcast EstimateSource = "rentcast"
)

// Estimate is a single valuation figure plus its provenance.
type Estimate struct {
	Value      float64        `json:"value"`
	Source     EstimateSource `json:"source"`
	Confidence float64        `json:"confidence,omitempty"` // 0..1, zero when source is manual
	Note       string         `json:"note,omitempty"`
}

// Comparable is a nearby sale attached to a lead's evaluation.
type Comparable struct {
	Address       string    `json:"address"`
	SalePrice     float64   `json:"salePrice"`
	PricePerSqft  float64   `json:"pricePerSqft"`
	SaleDate      time.Time `json:"saleDate"`
	DistanceMiles float64   `json:"distanceMiles"`
	IsVerified    bool      `json:"isVerified"` // false for placeholder comps, true for RentCast-sourced
}

// Lead is a property lead as served by the backend queue endpoint.
type Lead struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`

	ListingPrice float64  `json:"listingPrice"`
	ARV          Estimate `json:"arv"`
	Rehab        Estimate `json:"rehab"`
	Rent         Estimate `json:"rent"`

	// Derived by the server; the client recomputes them only for optimistic
	// display and always adopts the server's numbers on confirmation.
	MAO           float64 `json:"mao"`
	SpreadPercent float64 `json:"spreadPercent"`

	Status       LeadStatus `json:"status"`
	FollowUpDate string     `json:"followUpDate,omitempty"` // YYYY-MM-DD, empty when none
	FollowUpDue  bool       `json:"followUpDue"`

	LeadScore         int    `json:"leadScore"` // 0..10
	NeighborhoodGrade string `json:"neighborhoodGrade,omitempty"`

	SellerPhone string `json:"sellerPhone,omitempty"`
	Notes       string `json:"notes,omitempty"`

	Comparables []Comparable `json:"comparables,omitempty"`

	// Version is a per-entity stamp bumped by the server on every write.
	// Merges discard pushed state older than what the client already holds.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// IsNew flags a lead freshly arrived over the hub. Client-side only,
	// cleared shortly after arrival.
	IsNew bool `json:"-"`
}

// Clone returns a deep copy of the lead.
func (l Lead) Clone() Lead {
	out := l
	if l.Comparables != nil {
		out.Comparables = make([]Comparable, len(l.Comparables))
		copy(out.Comparables, l.Comparables)
	}
	return out
}

package model

import "github.com/shopspring/decimal"

// KYCData holds the know-your-customer contact details of a client.
type KYCData struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Contact string `json:"contact"`
}

// Portfolio is a named sleeve of client assets.
type Portfolio struct {
	PortfolioID string          `json:"portfolioId"`
	Name        string          `json:"name"`
	AUM         decimal.Decimal `json:"aum"`
}

// Holding is a position in a single instrument.
type Holding struct {
	ISIN           string          `json:"isin"`
	InstrumentName string          `json:"instrumentName"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Value          decimal.Decimal `json:"value"`
}

// NewHolding builds a holding and derives its value from quantity and price.
func NewHolding(isin, name string, qty, price decimal.Decimal) Holding {
	return Holding{
		ISIN:           isin,
		InstrumentName: name,
		Quantity:       qty,
		Price:          price,
		Value:          qty.Mul(price),
	}
}

// Client is an institutional customer of the portal.
type Client struct {
	ClientID   string      `json:"clientId"`
	Name       string      `json:"name"`
	Segment    string      `json:"segment"`
	KYCData    KYCData     `json:"kycData"`
	Portfolios []Portfolio `json:"portfolios"`
	Holdings   []Holding   `json:"holdings"`
}

// Clone returns a deep copy of the client.
func (c Client) Clone() Client {
	out := c
	out.Portfolios = append([]Portfolio(nil), c.Portfolios...)
	out.Holdings = append([]Holding(nil), c.Holdings...)
	if out.Portfolios == nil {
		out.Portfolios = []Portfolio{}
	}
	if out.Holdings == nil {
		out.Holdings = []Holding{}
	}
	return out
}

// KYCPatch carries the KYC fields present in an update request.
type KYCPatch struct {
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Contact *string `json:"contact,omitempty"`
}

// ClientPatch carries the client fields present in an update request.
// Nil fields are left untouched.
type ClientPatch struct {
	Name    *string   `json:"name,omitempty"`
	Segment *string   `json:"segment,omitempty"`
	KYCData *KYCPatch `json:"kycData,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p ClientPatch) Empty() bool {
	if p.Name != nil || p.Segment != nil {
		return false
	}
	if p.KYCData == nil {
		return true
	}
	k := p.KYCData
	return k.Email == nil && k.Phone == nil && k.Address == nil && k.Contact == nil
}

// Apply merges the patch into c. Scalars are replaced, kycData is merged field by field.
func (p ClientPatch) Apply(c *Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Segment != nil {
		c.Segment = *p.Segment
	}
	if k := p.KYCData; k != nil {
		if k.Email != nil {
			c.KYCData.Email = *k.Email
		}
		if k.Phone != nil {
			c.KYCData.Phone = *k.Phone
		}
		if k.Address != nil {
			c.KYCData.Address = *k.Address
		}
		if k.Contact != nil {
			c.KYCData.Contact = *k.Contact
		}
	}
}

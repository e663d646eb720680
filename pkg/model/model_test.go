package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInstructionStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to InstructionStatus
		want     bool
	}{
		{InstructionSubmitted, InstructionPending, true},
		{InstructionPending, InstructionApproved, true},
		{InstructionApproved, InstructionCompleted, true},
		{InstructionPending, InstructionRejected, true},
		{InstructionPending, InstructionCompleted, false},
		{InstructionCompleted, InstructionApproved, false},
		{InstructionRejected, InstructionPending, false},
		{InstructionDraft, InstructionApproved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestInstructionStatus_Terminal(t *testing.T) {
	assert.True(t, InstructionCompleted.Terminal())
	assert.True(t, InstructionRejected.Terminal())
	assert.False(t, InstructionPending.Terminal())
	assert.False(t, InstructionStatus("bogus").Valid())
}

func TestInstructionFilter_Match(t *testing.T) {
	ins := Instruction{ClientID: "CLIENT-001", Status: InstructionPending}

	assert.True(t, InstructionFilter{}.Match(ins))
	assert.True(t, InstructionFilter{ClientID: "CLIENT-001"}.Match(ins))
	assert.True(t, InstructionFilter{ClientID: "CLIENT-001", Status: InstructionPending}.Match(ins))
	assert.False(t, InstructionFilter{ClientID: "CLIENT-001", Status: InstructionApproved}.Match(ins))
	assert.False(t, InstructionFilter{ClientID: "CLIENT-002"}.Match(ins))
}

func TestClientPatch_MergesKYCFieldByField(t *testing.T) {
	c := Client{
		ClientID: "CLIENT-001",
		Name:     "Zenith Pensions",
		KYCData:  KYCData{Email: "client@example.com", Phone: "+234 800 000 0000"},
	}
	email := "new@x.com"

	ClientPatch{KYCData: &KYCPatch{Email: &email}}.Apply(&c)

	assert.Equal(t, "new@x.com", c.KYCData.Email)
	assert.Equal(t, "+234 800 000 0000", c.KYCData.Phone)
	assert.Equal(t, "Zenith Pensions", c.Name)
}

func TestClientPatch_Empty(t *testing.T) {
	name := "x"
	assert.True(t, ClientPatch{}.Empty())
	assert.True(t, ClientPatch{KYCData: &KYCPatch{}}.Empty())
	assert.False(t, ClientPatch{Name: &name}.Empty())
}

func TestClientClone_DoesNotShareSlices(t *testing.T) {
	c := Client{Portfolios: []Portfolio{{PortfolioID: "PF-001"}}}
	cp := c.Clone()
	cp.Portfolios[0].PortfolioID = "changed"

	assert.Equal(t, "PF-001", c.Portfolios[0].PortfolioID)
	assert.NotNil(t, cp.Holdings)
}

func TestNewHolding_Value(t *testing.T) {
	h := NewHolding("NG1234567890", "ZENITHBANK", decimal.NewFromInt(1000), decimal.RequireFromString("35.4"))
	assert.True(t, h.Value.Equal(decimal.NewFromInt(35400)))
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "John Doe", User{FirstName: "John", LastName: "Doe"}.FullName())
	assert.Equal(t, "John", User{FirstName: "John"}.FullName())
}

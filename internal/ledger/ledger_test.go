package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/core"
)

func aed(units int64) core.Money { return core.Money{Cents: units * 100} }

func tenant1000() *core.Tenant {
	return &core.Tenant{
		ID:        "t1",
		Name:      "Alice",
		Property:  "Unit 1",
		Rent:      aed(1000),
		StartDate: core.NewDate(2024, 1, 1),
	}
}

func pay(tenantID string, y, m, d int, units int64) core.Payment {
	return core.Payment{TenantID: tenantID, Date: core.NewDate(y, m, d), Amount: aed(units)}
}

func month(y int, m time.Month) core.YearMonth { return core.NewYearMonth(y, m) }

func TestComputeBalanceOnTimePayer(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2024, 1, 15, 1000),
		pay("t1", 2024, 2, 10, 1000),
	}

	b := ComputeBalance(tenant1000(), payments, month(2024, time.March))

	assert.Equal(t, aed(1000), b.RentDue)
	assert.Equal(t, aed(0), b.BalanceForwarded)
	assert.Equal(t, aed(1000), b.TotalDue)
	assert.Equal(t, aed(0), b.PaidThisMonth)
	assert.Equal(t, aed(1000), b.EndingBalance)
}

func TestComputeBalanceOverpaymentCarriesCredit(t *testing.T) {
	payments := []core.Payment{pay("t1", 2024, 1, 20, 2500)}

	b := ComputeBalance(tenant1000(), payments, month(2024, time.February))

	assert.Equal(t, aed(-1500), b.BalanceForwarded)
	assert.Equal(t, aed(-500), b.TotalDue)
	assert.Equal(t, aed(0), b.PaidThisMonth)
	assert.Equal(t, aed(-500), b.EndingBalance)
	assert.True(t, b.IsCredit())
	assert.True(t, b.IsSettled())
}

func TestComputeBalancePaymentBeforeLeaseStart(t *testing.T) {
	tn := tenant1000()
	tn.StartDate = core.NewDate(2024, 3, 1)
	payments := []core.Payment{pay("t1", 2024, 1, 15, 500)}

	// Nothing has accrued yet, so the early payment is forwarded as credit.
	for _, m := range []core.YearMonth{month(2024, time.February), month(2024, time.March)} {
		b := ComputeBalance(tn, payments, m)
		assert.Equal(t, aed(-500), b.BalanceForwarded, m.String())
		assert.Equal(t, aed(500), b.TotalDue, m.String())
		assert.Equal(t, aed(0), b.PaidThisMonth, m.String())
		assert.Equal(t, aed(500), b.EndingBalance, m.String())
	}

	b := ComputeBalance(tn, payments, month(2024, time.April))
	assert.Equal(t, aed(500), b.BalanceForwarded)

	entries := History(*tn, payments, month(2024, time.March))
	require.Len(t, entries, 1)
	assert.Equal(t, aed(-500), entries[0].Opening)
	assert.Equal(t, aed(500), entries[0].Closing)
}

func TestComputeBalanceNilTenant(t *testing.T) {
	b := ComputeBalance(nil, []core.Payment{pay("t1", 2024, 1, 1, 10)}, month(2024, time.March))
	assert.Equal(t, Balance{}, b)
}

func TestComputeBalanceReportAtOrBeforeStart(t *testing.T) {
	for _, m := range []core.YearMonth{month(2024, time.January), month(2023, time.June)} {
		b := ComputeBalance(tenant1000(), nil, m)
		assert.Equal(t, aed(0), b.BalanceForwarded, "month %s", m)
		assert.Equal(t, aed(1000), b.TotalDue, "month %s", m)
		assert.Equal(t, aed(1000), b.EndingBalance, "month %s", m)
	}
}

func TestComputeBalancePaymentsInReportMonth(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2024, 3, 1, 400),
		pay("t1", 2024, 3, 31, 600),
	}
	b := ComputeBalance(tenant1000(), payments, month(2024, time.March))

	assert.Equal(t, aed(2000), b.BalanceForwarded)
	assert.Equal(t, aed(3000), b.TotalDue)
	assert.Equal(t, aed(1000), b.PaidThisMonth)
	assert.Equal(t, aed(2000), b.EndingBalance)
}

func TestComputeBalanceIgnoresFuturePaymentsAndOtherTenants(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2024, 4, 2, 5000),
		pay("t2", 2024, 1, 2, 5000),
		pay("t2", 2024, 2, 2, 5000),
	}
	b := ComputeBalance(tenant1000(), payments, month(2024, time.February))

	assert.Equal(t, aed(1000), b.BalanceForwarded)
	assert.Equal(t, aed(0), b.PaidThisMonth)
	assert.Equal(t, aed(2000), b.EndingBalance)
}

func TestComputeBalanceMidMonthStartStillChargesFullMonth(t *testing.T) {
	tn := tenant1000()
	tn.StartDate = core.NewDate(2024, 1, 28)

	b := ComputeBalance(tn, nil, month(2024, time.February))
	assert.Equal(t, aed(1000), b.BalanceForwarded)
}

func TestComputeBalanceIdentities(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2023, 12, 30, 300),
		pay("t1", 2024, 1, 5, 750),
		pay("t1", 2024, 3, 9, 1200),
		pay("t1", 2024, 5, 9, 10),
	}
	for m := month(2023, time.November); !m.After(month(2024, time.July)); m = m.AddMonths(1) {
		b := ComputeBalance(tenant1000(), payments, m)
		assert.Equal(t, b.RentDue.Add(b.BalanceForwarded), b.TotalDue, "month %s", m)
		assert.Equal(t, b.TotalDue.Sub(b.PaidThisMonth), b.EndingBalance, "month %s", m)
	}
}

func TestComputeBalanceUnaffectedByPaymentOrder(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2024, 2, 10, 100),
		pay("t1", 2024, 1, 10, 200),
		pay("t1", 2024, 3, 10, 300),
	}
	reversed := []core.Payment{payments[2], payments[1], payments[0]}

	a := ComputeBalance(tenant1000(), payments, month(2024, time.March))
	b := ComputeBalance(tenant1000(), reversed, month(2024, time.March))
	assert.Equal(t, a, b)
}

func TestHistoryAgreesWithComputeBalance(t *testing.T) {
	payments := []core.Payment{
		pay("t1", 2023, 12, 20, 500),
		pay("t1", 2024, 1, 15, 1000),
		pay("t1", 2024, 3, 2, 1500),
	}
	through := month(2024, time.April)

	entries := History(*tenant1000(), payments, through)
	require.Len(t, entries, 4)

	assert.Equal(t, month(2024, time.January), entries[0].Month)
	assert.Equal(t, aed(-500), entries[0].Opening)
	assert.Equal(t, aed(-500), entries[0].Closing)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Closing, entries[i].Opening)
	}

	last := entries[len(entries)-1]
	b := ComputeBalance(tenant1000(), payments, through)
	assert.Equal(t, b.BalanceForwarded, last.Opening)
	assert.Equal(t, b.PaidThisMonth, last.Paid)
	assert.Equal(t, b.EndingBalance, last.Closing)
}

func TestHistoryBeforeStartIsEmpty(t *testing.T) {
	assert.Empty(t, History(*tenant1000(), nil, month(2023, time.December)))
}

func TestBalancesAndOutstanding(t *testing.T) {
	bob := core.Tenant{ID: "t2", Name: "Bob", Rent: aed(500), StartDate: core.NewDate(2024, 2, 1)}
	tenants := []core.Tenant{*tenant1000(), bob}
	payments := []core.Payment{
		pay("t1", 2024, 1, 3, 4000),
		pay("t2", 2024, 2, 3, 500),
	}

	got := Balances(tenants, payments, month(2024, time.March))
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].Tenant.ID)
	assert.Equal(t, aed(-1000), got[0].Balance.EndingBalance)
	assert.Equal(t, aed(500), got[1].Balance.EndingBalance)

	assert.Equal(t, aed(500), Outstanding(got))
}

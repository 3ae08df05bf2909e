// Package ledger derives a tenant's rent position for a calendar month.
//
// Rent is charged once per month starting with the lease-start month.
// Balances are signed: a negative value is a credit in the tenant's favour.
package ledger

import (
	"rentbook/internal/core"
)

// Balance is the five-figure summary shown for one tenant and report month.
type Balance struct {
	RentDue          core.Money
	BalanceForwarded core.Money
	TotalDue         core.Money
	PaidThisMonth    core.Money
	EndingBalance    core.Money
}

// ComputeBalance returns the tenant's position for the report month.
//
// Charges accrue for every month from the lease-start month up to, but not
// including, the report month. Payments dated in an earlier month settle
// those charges, even when they predate the lease, so an early payment is
// forwarded as credit. Payments inside the report month count as paid this
// month and later ones are ignored. A nil tenant yields the zero Balance.
func ComputeBalance(tenant *core.Tenant, payments []core.Payment, month core.YearMonth) Balance {
	if tenant == nil {
		return Balance{}
	}

	charged := chargedBefore(*tenant, month)

	var paidBefore, paidThis core.Money
	for _, p := range payments {
		if p.TenantID != tenant.ID {
			continue
		}
		pm := p.Date.YearMonth()
		switch {
		case pm.Before(month):
			paidBefore = paidBefore.Add(p.Amount)
		case pm == month:
			paidThis = paidThis.Add(p.Amount)
		}
	}

	forwarded := charged.Sub(paidBefore)
	totalDue := tenant.Rent.Add(forwarded)

	return Balance{
		RentDue:          tenant.Rent,
		BalanceForwarded: forwarded,
		TotalDue:         totalDue,
		PaidThisMonth:    paidThis,
		EndingBalance:    totalDue.Sub(paidThis),
	}
}

// chargedBefore is the rent accrued for months strictly before month.
func chargedBefore(t core.Tenant, month core.YearMonth) core.Money {
	months := t.StartDate.YearMonth().MonthsUntil(month)
	if months < 0 {
		months = 0
	}
	return t.Rent.Mul(int64(months))
}

// IsCredit reports whether the tenant has overpaid after this month.
func (b Balance) IsCredit() bool {
	return b.EndingBalance.IsNegative()
}

// IsSettled reports whether nothing is owed after this month.
func (b Balance) IsSettled() bool {
	return b.EndingBalance.Cents <= 0
}

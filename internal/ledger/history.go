package ledger

import (
	"rentbook/internal/core"
)

// MonthEntry is one row of a tenant statement.
type MonthEntry struct {
	Month   core.YearMonth
	Opening core.Money
	Charged core.Money
	Paid    core.Money
	Closing core.Money
}

// History returns a month-by-month statement from the lease-start month through
// the given month inclusive. Payments made before the lease started open the
// first row as a credit. The last row agrees with ComputeBalance for through:
// its Opening is BalanceForwarded and its Closing is EndingBalance.
func History(tenant core.Tenant, payments []core.Payment, through core.YearMonth) []MonthEntry {
	start := tenant.StartDate.YearMonth()
	if through.Before(start) {
		return nil
	}

	paid := make(map[core.YearMonth]core.Money)
	var prepaid core.Money
	for _, p := range payments {
		if p.TenantID != tenant.ID {
			continue
		}
		pm := p.Date.YearMonth()
		if pm.Before(start) {
			prepaid = prepaid.Add(p.Amount)
			continue
		}
		paid[pm] = paid[pm].Add(p.Amount)
	}

	entries := make([]MonthEntry, 0, start.MonthsUntil(through)+1)
	opening := prepaid.Neg()
	for m := start; !m.After(through); m = m.AddMonths(1) {
		e := MonthEntry{
			Month:   m,
			Opening: opening,
			Charged: tenant.Rent,
			Paid:    paid[m],
		}
		e.Closing = e.Opening.Add(e.Charged).Sub(e.Paid)
		entries = append(entries, e)
		opening = e.Closing
	}
	return entries
}

// TenantBalance pairs a tenant with its balance for one month.
type TenantBalance struct {
	Tenant  core.Tenant
	Balance Balance
}

// Balances computes every tenant's position for month, preserving tenant order.
func Balances(tenants []core.Tenant, payments []core.Payment, month core.YearMonth) []TenantBalance {
	byTenant := make(map[string][]core.Payment, len(tenants))
	for _, p := range payments {
		byTenant[p.TenantID] = append(byTenant[p.TenantID], p)
	}
	out := make([]TenantBalance, 0, len(tenants))
	for i := range tenants {
		t := tenants[i]
		out = append(out, TenantBalance{
			Tenant:  t,
			Balance: ComputeBalance(&t, byTenant[t.ID], month),
		})
	}
	return out
}

// Outstanding sums the positive ending balances, i.e. rent still owed across tenants.
func Outstanding(balances []TenantBalance) core.Money {
	return core.Sum(balances, func(tb TenantBalance) core.Money {
		if tb.Balance.IsSettled() {
			return core.Money{}
		}
		return tb.Balance.EndingBalance
	})
}

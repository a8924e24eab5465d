package service

import (
	"fmt"

	"github.com/topodata/geoflow/internal/model"
)

// ComputeInvoices allocates the card's expenses into billing cycles. Each
// expense is split evenly across its installments; installment i of an
// expense dated d lands in month(d)+i, shifted one month forward when the
// purchase day is on or past the card's closing day. Bucket keys are
// YYYY-MM. The even split is not re-balanced to sum exactly to the expense
// amount; the floating remainder is accepted behavior.
func ComputeInvoices(card model.CreditCard, expenses []model.CardExpense) map[string]model.InvoiceCycle {
	cycles := make(map[string]model.InvoiceCycle)

	for _, expense := range expenses {
		installments := expense.Installments
		if installments < 1 {
			installments = 1
		}
		amount := expense.Amount / float64(installments)

		base := monthIndex(expense.PurchasedAt.Year(), int(expense.PurchasedAt.Month()))
		if expense.PurchasedAt.Day() >= card.ClosingDay {
			base++
		}

		for i := 0; i < installments; i++ {
			key := cycleKey(base + i)
			cycle := cycles[key]
			cycle.Total += amount
			cycle.Items = append(cycle.Items, model.InvoiceItem{
				ExpenseID:   expense.ID,
				Description: expense.Description,
				Installment: i,
				Of:          installments,
				Amount:      amount,
			})
			cycles[key] = cycle
		}
	}

	return cycles
}

// monthIndex flattens a calendar month so installment arithmetic cannot
// overflow at day-of-month boundaries the way time.AddDate does.
func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func cycleKey(index int) string {
	return fmt.Sprintf("%04d-%02d", index/12, index%12+1)
}

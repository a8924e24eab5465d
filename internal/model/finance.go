package model

import (
	"time"

	"github.com/google/uuid"
)

type CreditCard struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	CreditLimit float64
	ClosingDay  int
	DueDay      int
	CreatedAt   time.Time
}

type CardExpense struct {
	ID           uuid.UUID
	CardID       uuid.UUID
	Description  string
	Amount       float64
	Installments int
	PurchasedAt  time.Time
	CreatedAt    time.Time
}

// InvoiceItem is one installment of an expense allocated to a billing cycle.
type InvoiceItem struct {
	ExpenseID   uuid.UUID
	Description string
	Installment int
	Of          int
	Amount      float64
}

type InvoiceCycle struct {
	Total float64
	Items []InvoiceItem
}

// InvoiceStatement groups the computed cycles for one card, cycle keys in
// YYYY-MM form.
type InvoiceStatement struct {
	Card   CreditCard
	Cycles map[string]InvoiceCycle
}

package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
)

type FinanceStore interface {
	GetCard(ctx context.Context, id uuid.UUID) (*model.CreditCard, error)
	ListExpensesForCard(ctx context.Context, cardID uuid.UUID) ([]model.CardExpense, error)
}

type StatementGenerator interface {
	Generate(statement model.InvoiceStatement) ([]byte, error)
}

// FinanceService computes credit-card billing cycles and exports them as a
// statement workbook.
type FinanceService struct {
	store FinanceStore
	excel StatementGenerator
}

type StatementResult struct {
	FileName string
	Content  []byte
}

func NewFinanceService(store FinanceStore, excel StatementGenerator) *FinanceService {
	return &FinanceService{store: store, excel: excel}
}

// Invoices aggregates the card's expenses into billing cycles. A card with
// no expenses yields an empty cycle map.
func (s *FinanceService) Invoices(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*model.InvoiceStatement, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	if cardID == uuid.Nil {
		return nil, fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if card.OwnerID != principal.UserID {
		return nil, ErrPermissionDenied
	}

	expenses, err := s.store.ListExpensesForCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	return &model.InvoiceStatement{
		Card:   *card,
		Cycles: ComputeInvoices(*card, expenses),
	}, nil
}

// ExportStatement renders the card's cycles into an XLSX workbook.
func (s *FinanceService) ExportStatement(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*StatementResult, error) {
	statement, err := s.Invoices(ctx, principal, cardID)
	if err != nil {
		return nil, err
	}

	content, err := s.excel.Generate(*statement)
	if err != nil {
		return nil, err
	}

	name := sanitizeFileName(statement.Card.Name)
	if name == "" {
		name = statement.Card.ID.String()
	}
	return &StatementResult{
		FileName: fmt.Sprintf("invoices-%s.xlsx", name),
		Content:  content,
	}, nil
}

// SortedCycleKeys returns the statement's cycle keys in chronological
// order; YYYY-MM keys sort lexicographically.
func SortedCycleKeys(cycles map[string]model.InvoiceCycle) []string {
	keys := make([]string, 0, len(cycles))
	for key := range cycles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

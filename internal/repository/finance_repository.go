package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
)

type FinanceRepository struct {
	db *gorm.DB
}

func NewFinanceRepository(db *gorm.DB) *FinanceRepository {
	return &FinanceRepository{db: db}
}

func (r *FinanceRepository) GetCard(ctx context.Context, id uuid.UUID) (*model.CreditCard, error) {
	var card model.CreditCard
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			owner_id,
			name,
			credit_limit,
			closing_day,
			due_day,
			created_at
		FROM credit_cards
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&card).Error
	if err != nil {
		return nil, err
	}
	if card.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &card, nil
}

func (r *FinanceRepository) ListExpensesForCard(ctx context.Context, cardID uuid.UUID) ([]model.CardExpense, error) {
	var expenses []model.CardExpense
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			card_id,
			description,
			amount,
			installments,
			purchased_at,
			created_at
		FROM card_expenses
		WHERE card_id = ?
		ORDER BY purchased_at ASC
	`, cardID).Scan(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
)

// RecordRepository is the generic record-level collaborator: upsert and
// delete keyed by entity kind name and id. Kinds and their writable columns
// are whitelisted; anything else is rejected before SQL is built.
type RecordRepository struct {
	db *gorm.DB
}

type recordKind struct {
	table   string
	columns map[string]struct{}
}

var recordKinds = map[string]recordKind{
	"client": {
		table:   "clients",
		columns: columnSet("name", "document", "email", "phone", "address"),
	},
	"property": {
		table:   "properties",
		columns: columnSet("client_id", "name", "municipality", "area_ha", "registration"),
	},
	"professional": {
		table:   "professionals",
		columns: columnSet("name", "crea", "email", "phone"),
	},
	"service": {
		table:   "services",
		columns: columnSet("name", "description", "base_price"),
	},
	"registry": {
		table:   "registries",
		columns: columnSet("name", "jurisdiction", "email", "phone"),
	},
	"project": {
		table: "projects",
		columns: columnSet(
			"client_id", "property_id", "professional_id", "service_id",
			"registry_id", "title", "deadline",
		),
	},
	"credit_card": {
		table:   "credit_cards",
		columns: columnSet("name", "credit_limit", "closing_day", "due_day"),
	},
	"card_expense": {
		table:   "card_expenses",
		columns: columnSet("card_id", "description", "amount", "installments", "purchased_at"),
	},
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

var ErrUnknownKind = fmt.Errorf("unknown record kind")

// Upsert inserts a new record when id is nil, otherwise updates the given
// columns of the existing one. Returns the record id.
func (r *RecordRepository) Upsert(ctx context.Context, principal model.Principal, kind string, id *uuid.UUID, fields map[string]interface{}) (uuid.UUID, error) {
	def, ok := recordKinds[kind]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if _, allowed := def.columns[column]; !allowed {
			return uuid.Nil, fmt.Errorf("%w: column %s not writable on %s", ErrUnknownKind, column, kind)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	if id == nil {
		newID := uuid.New()
		names := append([]string{"id", "owner_id"}, columns...)
		placeholders := make([]string, len(names))
		for i := range placeholders {
			placeholders[i] = "?"
		}
		args := []interface{}{newID, principal.UserID}
		for _, column := range columns {
			args = append(args, fields[column])
		}
		query := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			def.table, strings.Join(names, ", "), strings.Join(placeholders, ", "),
		)
		if err := r.db.WithContext(ctx).Exec(query, args...).Error; err != nil {
			return uuid.Nil, err
		}
		return newID, nil
	}

	if len(columns) == 0 {
		return *id, nil
	}
	assignments := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns)+2)
	for _, column := range columns {
		assignments = append(assignments, column+" = ?")
		args = append(args, fields[column])
	}
	args = append(args, *id, principal.UserID)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ? AND owner_id = ?",
		def.table, strings.Join(assignments, ", "),
	)
	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	if result.RowsAffected == 0 {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return *id, nil
}

func (r *RecordRepository) Delete(ctx context.Context, principal model.Principal, kind string, id uuid.UUID) error {
	def, ok := recordKinds[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	result := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE id = ? AND owner_id = ?", def.table),
		id, principal.UserID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns all of the owner's records of a kind as generic rows, for
// the refresh-on-demand read collaborator.
func (r *RecordRepository) List(ctx context.Context, principal model.Principal, kind string) ([]map[string]interface{}, error) {
	def, ok := recordKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).Raw(
		fmt.Sprintf("SELECT * FROM %s WHERE owner_id = ? ORDER BY created_at DESC", def.table),
		principal.UserID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return rows, nil
}

func columnSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'step_status') THEN
			CREATE TYPE step_status AS ENUM (
				'NOT_STARTED', 'IN_PROGRESS', 'PENDING',
				'WAITING_APPROVAL', 'REJECTED', 'COMPLETED'
			);
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS clients (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		document VARCHAR(32),
		email VARCHAR(255),
		phone VARCHAR(32),
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS properties (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		client_id UUID REFERENCES clients(id),
		name VARCHAR(255) NOT NULL,
		municipality VARCHAR(128),
		area_ha NUMERIC(12,4),
		registration VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS professionals (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		crea VARCHAR(32),
		email VARCHAR(255),
		phone VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS services (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		base_price NUMERIC(12,2),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS registries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		jurisdiction VARCHAR(64),
		email VARCHAR(255),
		phone VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		client_id UUID REFERENCES clients(id),
		property_id UUID REFERENCES properties(id),
		professional_id UUID REFERENCES professionals(id),
		service_id UUID REFERENCES services(id),
		registry_id UUID REFERENCES registries(id),
		title VARCHAR(255) NOT NULL,
		current_step_index INT NOT NULL DEFAULT 0,
		deadline DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS project_steps (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		position INT NOT NULL,
		kind VARCHAR(32) NOT NULL,
		label VARCHAR(128) NOT NULL,
		status step_status NOT NULL DEFAULT 'NOT_STARTED',
		notes TEXT NOT NULL DEFAULT '',
		has_document BOOLEAN NOT NULL DEFAULT FALSE,
		document_number VARCHAR(64),
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_project_steps_position ON project_steps (project_id, position);`,
	`CREATE INDEX IF NOT EXISTS idx_project_steps_project_id ON project_steps (project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects (owner_id);`,
	`CREATE TABLE IF NOT EXISTS credit_cards (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		name VARCHAR(128) NOT NULL,
		credit_limit NUMERIC(12,2) NOT NULL DEFAULT 0,
		closing_day INT NOT NULL,
		due_day INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS card_expenses (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		card_id UUID NOT NULL REFERENCES credit_cards(id) ON DELETE CASCADE,
		description VARCHAR(255) NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		installments INT NOT NULL DEFAULT 1,
		purchased_at DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_card_expenses_card_id ON card_expenses (card_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

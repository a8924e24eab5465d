package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.id,
			p.owner_id,
			p.client_id,
			p.property_id,
			p.professional_id,
			p.service_id,
			p.registry_id,
			p.title,
			p.current_step_index,
			p.deadline,
			p.created_at,
			p.updated_at,
			COALESCE(s.name, '') AS service_name,
			COALESCE(r.jurisdiction, '') AS registry_jurisdiction,
			COALESCE(c.name, '') AS client_name
		FROM projects p
		LEFT JOIN services s ON s.id = p.service_id
		LEFT JOIN registries r ON r.id = p.registry_id
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.id = ?
		LIMIT 1
	`, id).Scan(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	steps, err := r.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Steps = steps
	return &project, nil
}

func (r *WorkflowRepository) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.id,
			p.owner_id,
			p.client_id,
			p.property_id,
			p.professional_id,
			p.service_id,
			p.registry_id,
			p.title,
			p.current_step_index,
			p.deadline,
			p.created_at,
			p.updated_at,
			COALESCE(s.name, '') AS service_name,
			COALESCE(r.jurisdiction, '') AS registry_jurisdiction,
			COALESCE(c.name, '') AS client_name
		FROM projects p
		LEFT JOIN services s ON s.id = p.service_id
		LEFT JOIN registries r ON r.id = p.registry_id
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.owner_id = ?
		ORDER BY p.created_at DESC
	`, ownerID).Scan(&projects).Error
	if err != nil {
		return nil, err
	}

	for i := range projects {
		steps, err := r.listSteps(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Steps = steps
	}
	return projects, nil
}

// ReplaceSteps swaps the project's step set in one transaction: delete all,
// insert the new set, reset the pointer. A failed replace rolls back to the
// previous set, never a partial one.
func (r *WorkflowRepository) ReplaceSteps(ctx context.Context, projectID uuid.UUID, steps []model.Step) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			DELETE FROM project_steps WHERE project_id = ?
		`, projectID).Error; err != nil {
			return err
		}

		for _, step := range steps {
			if err := tx.Exec(`
				INSERT INTO project_steps (
					id,
					project_id,
					position,
					kind,
					label,
					status,
					notes,
					has_document,
					document_number,
					created_by,
					created_at,
					updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				step.ID,
				step.ProjectID,
				step.Position,
				step.Kind,
				step.Label,
				step.Status,
				step.Notes,
				step.HasDocument,
				step.DocumentNumber,
				step.CreatedBy,
				step.CreatedAt,
				step.UpdatedAt,
			).Error; err != nil {
				return err
			}
		}

		return tx.Exec(`
			UPDATE projects SET current_step_index = 0, updated_at = NOW() WHERE id = ?
		`, projectID).Error
	})
}

func (r *WorkflowRepository) GetStep(ctx context.Context, id uuid.UUID) (*model.Step, error) {
	var step model.Step
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			project_id,
			position,
			kind,
			label,
			status,
			notes,
			has_document,
			document_number,
			created_by,
			created_at,
			updated_at
		FROM project_steps
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&step).Error
	if err != nil {
		return nil, err
	}
	if step.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &step, nil
}

// UpdateStepState writes status and notes in a single statement so neither
// is ever observable without the other.
func (r *WorkflowRepository) UpdateStepState(ctx context.Context, id uuid.UUID, status model.StepStatus, notes string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE project_steps
		SET status = ?, notes = ?, updated_at = NOW()
		WHERE id = ?
	`, status, notes, id).Error
}

// AdvanceCurrentStep moves the project pointer and marks the newly current
// step in progress, in one transaction.
func (r *WorkflowRepository) AdvanceCurrentStep(ctx context.Context, projectID uuid.UUID, index int, stepID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			UPDATE projects SET current_step_index = ?, updated_at = NOW() WHERE id = ?
		`, index, projectID).Error; err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE project_steps
			SET status = ?, updated_at = NOW()
			WHERE id = ? AND status = ?
		`, model.StepStatusInProgress, stepID, model.StepStatusNotStarted).Error
	})
}

func (r *WorkflowRepository) SetDocumentNumber(ctx context.Context, id uuid.UUID, number string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE project_steps
		SET document_number = NULLIF(?, ''), updated_at = NOW()
		WHERE id = ?
	`, number, id).Error
}

func (r *WorkflowRepository) listSteps(ctx context.Context, projectID uuid.UUID) ([]model.Step, error) {
	var steps []model.Step
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			project_id,
			position,
			kind,
			label,
			status,
			notes,
			has_document,
			document_number,
			created_by,
			created_at,
			updated_at
		FROM project_steps
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID).Scan(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

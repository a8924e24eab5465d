package model

import (
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepStatusNotStarted      StepStatus = "NOT_STARTED"
	StepStatusInProgress      StepStatus = "IN_PROGRESS"
	StepStatusPending         StepStatus = "PENDING"
	StepStatusWaitingApproval StepStatus = "WAITING_APPROVAL"
	StepStatusRejected        StepStatus = "REJECTED"
	StepStatusCompleted       StepStatus = "COMPLETED"
)

type StepKind string

const (
	StepKindBudget          StepKind = "BUDGET"
	StepKindContract        StepKind = "CONTRACT"
	StepKindServiceOrder    StepKind = "SERVICE_ORDER"
	StepKindArtCrea         StepKind = "ART_CREA"
	StepKindDocumentation   StepKind = "DOCUMENTATION"
	StepKindSigef           StepKind = "SIGEF"
	StepKindConfrontants    StepKind = "CONFRONTANTS"
	StepKindGeoReport       StepKind = "GEO_REPORT"
	StepKindCartoryReq      StepKind = "CARTORY_REQ"
	StepKindCriRegistration StepKind = "CRI_REGISTRATION"
	StepKindPointControl    StepKind = "POINT_CONTROL"
	StepKindReceipt         StepKind = "RECEIPT"
)

// Step is one stage of a project workflow. Notes carries a payload whose
// shape depends on Kind (see the workflow package codecs).
type Step struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Position       int
	Kind           StepKind
	Label          string
	Status         StepStatus
	Notes          string
	HasDocument    bool
	DocumentNumber *string
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Project struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	ClientID         *uuid.UUID
	PropertyID       *uuid.UUID
	ProfessionalID   *uuid.UUID
	ServiceID        *uuid.UUID
	RegistryID       *uuid.UUID
	Title            string
	CurrentStepIndex int
	Deadline         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Joined display fields, loaded with the project row.
	ServiceName          string
	RegistryJurisdiction string
	ClientName           string

	Steps []Step `gorm:"-"`
}

// Initialized reports whether the project carries a full step set. A
// partial set (interrupted replace) is treated as uninitialized so the
// workflow can be re-run from scratch.
func (p *Project) Initialized(templateLen int) bool {
	return len(p.Steps) == templateLen && templateLen > 0
}

// Completed reports whether the workflow reached its final step and that
// step is done.
func (p *Project) Completed() bool {
	if len(p.Steps) == 0 {
		return false
	}
	last := p.Steps[len(p.Steps)-1]
	return p.CurrentStepIndex == len(p.Steps)-1 && last.Status == StepStatusCompleted
}

// StepDocument is the structured payload handed to the document renderer.
// The engine fills it; formatting belongs to the renderer alone.
type StepDocument struct {
	ProjectTitle string
	ClientName   string
	Step         Step
}

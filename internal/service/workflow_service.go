package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/workflow"
)

// WorkflowStore is the persistence collaborator of the engine. ReplaceSteps
// and AdvanceCurrentStep must be transactional; UpdateStepState must write
// status and notes in a single statement.
type WorkflowStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	ReplaceSteps(ctx context.Context, projectID uuid.UUID, steps []model.Step) error
	GetStep(ctx context.Context, id uuid.UUID) (*model.Step, error)
	UpdateStepState(ctx context.Context, id uuid.UUID, status model.StepStatus, notes string) error
	AdvanceCurrentStep(ctx context.Context, projectID uuid.UUID, index int, stepID uuid.UUID) error
	SetDocumentNumber(ctx context.Context, id uuid.UUID, number string) error
}

type DocumentGenerator interface {
	Generate(doc model.StepDocument) ([]byte, error)
}

// WorkflowService drives the fixed-topology project workflow: step
// initialization from a template, approval transitions, checklist edits and
// the derived progress/urgency views.
type WorkflowService struct {
	store WorkflowStore
	docs  DocumentGenerator
	saver *NoteSaver
	log   zerolog.Logger
	now   func() time.Time
}

func NewWorkflowService(store WorkflowStore, docs DocumentGenerator, autosaveInterval time.Duration, log zerolog.Logger) *WorkflowService {
	s := &WorkflowService{
		store: store,
		docs:  docs,
		log:   log,
		now:   time.Now,
	}
	s.saver = newNoteSaver(s.flushNotes, autosaveInterval, log)
	return s
}

// Saver exposes the engine-owned autosave buffer for explicit flush and
// teardown hooks.
func (s *WorkflowService) Saver() *NoteSaver {
	return s.saver
}

type ProjectSummary struct {
	Project  model.Project
	Progress int
	Urgency  Urgency
}

type StepDocumentResult struct {
	FileName string
	Content  []byte
}

// Initialize replaces the project's step set from the template selected by
// its service. It is destructive and idempotent by replacement: the delete
// and the bulk insert run in one store transaction, so a failure leaves no
// partial set behind.
func (s *WorkflowService) Initialize(ctx context.Context, principal model.Principal, projectID uuid.UUID) (*model.Project, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}

	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}

	template := workflow.TemplateForService(project.ServiceName)
	now := s.now()
	steps := make([]model.Step, 0, len(template))
	for i, entry := range template {
		status := model.StepStatusNotStarted
		if i == 0 {
			status = model.StepStatusInProgress
		}
		step := model.Step{
			ID:          uuid.New(),
			ProjectID:   project.ID,
			Position:    i,
			Kind:        entry.Kind,
			Label:       entry.Label,
			Status:      status,
			HasDocument: entry.HasDocument,
			CreatedBy:   principal.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if entry.Kind == model.StepKindDocumentation {
			labels := workflow.ChecklistLabels(project.ServiceName, project.RegistryJurisdiction)
			step.Notes = workflow.NewChecklist(labels).Encode()
		}
		steps = append(steps, step)
	}

	if err := s.store.ReplaceSteps(ctx, project.ID, steps); err != nil {
		s.log.Error().Err(err).Str("project_id", project.ID.String()).Msg("workflow initialize failed")
		return nil, err
	}

	return s.getProject(ctx, projectID)
}

// SelectStep resolves the step a user wants to view. Steps beyond the
// current pointer are locked. Selecting a step cancels any autosave still
// pending for a sibling step of the same project; nothing is persisted.
func (s *WorkflowService) SelectStep(project *model.Project, index int) (*model.Step, error) {
	if project == nil || len(project.Steps) == 0 {
		return nil, ErrNotInitialized
	}
	if index < 0 || index >= len(project.Steps) {
		return nil, fmt.Errorf("%w: step index %d out of range", ErrInvalidInput, index)
	}
	if index > project.CurrentStepIndex {
		return nil, ErrStepLocked
	}
	step := &project.Steps[index]
	if s.saver != nil {
		siblings := make([]uuid.UUID, 0, len(project.Steps))
		for i := range project.Steps {
			siblings = append(siblings, project.Steps[i].ID)
		}
		s.saver.CancelExcept(step.ID, siblings)
	}
	return step, nil
}

// RequestApproval submits a step with its payload. Self-certifying kinds
// (documentation, point control) complete immediately and advance the
// pointer; all other kinds move to WAITING_APPROVAL for a separate approver
// action. Payload and status are persisted in one write.
func (s *WorkflowService) RequestApproval(ctx context.Context, principal model.Principal, stepID uuid.UUID, rawNotes string) (*model.Project, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}

	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	if step.Status == model.StepStatusCompleted {
		return nil, fmt.Errorf("%w: step already completed", ErrInvalidTransition)
	}
	if step.Position > project.CurrentStepIndex {
		return nil, ErrStepLocked
	}

	notes := workflow.NormalizeNotes(step.Kind, rawNotes)

	if workflow.SelfCertifying(step.Kind) {
		if err := s.store.UpdateStepState(ctx, step.ID, model.StepStatusCompleted, notes); err != nil {
			return nil, err
		}
		if err := s.advance(ctx, project, step.Position); err != nil {
			return nil, err
		}
		return s.getProject(ctx, project.ID)
	}

	if err := s.store.UpdateStepState(ctx, step.ID, model.StepStatusWaitingApproval, notes); err != nil {
		return nil, err
	}
	return s.getProject(ctx, project.ID)
}

// ApproveStep finalizes a step waiting for approval and advances the
// pointer unless the step is last. Any other status is an invalid
// transition and leaves the step untouched.
func (s *WorkflowService) ApproveStep(ctx context.Context, principal model.Principal, stepID uuid.UUID) (*model.Project, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}

	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	if step.Status != model.StepStatusWaitingApproval {
		return nil, fmt.Errorf("%w: step is %s", ErrInvalidTransition, step.Status)
	}

	if err := s.store.UpdateStepState(ctx, step.ID, model.StepStatusCompleted, step.Notes); err != nil {
		return nil, err
	}
	if err := s.advance(ctx, project, step.Position); err != nil {
		return nil, err
	}
	return s.getProject(ctx, project.ID)
}

// RejectStep sends a waiting step back to its submitter. The pointer does
// not move; the project stays blocked until the step is resubmitted.
func (s *WorkflowService) RejectStep(ctx context.Context, principal model.Principal, stepID uuid.UUID) (*model.Project, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}

	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	if step.Status != model.StepStatusWaitingApproval {
		return nil, fmt.Errorf("%w: step is %s", ErrInvalidTransition, step.Status)
	}

	if err := s.store.UpdateStepState(ctx, step.ID, model.StepStatusRejected, step.Notes); err != nil {
		return nil, err
	}
	return s.getProject(ctx, project.ID)
}

// ToggleChecklistItem flips one checklist entry of a documentation step and
// persists the updated map immediately, without approval gating. The step
// must have been reached; entries of locked steps cannot be flipped.
func (s *WorkflowService) ToggleChecklistItem(ctx context.Context, principal model.Principal, stepID uuid.UUID, itemID string) (*model.Step, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}

	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	if step.Kind != model.StepKindDocumentation {
		return nil, fmt.Errorf("%w: step has no checklist", ErrInvalidInput)
	}
	if step.Status == model.StepStatusCompleted {
		return nil, fmt.Errorf("%w: step already completed", ErrInvalidTransition)
	}
	if step.Position > project.CurrentStepIndex {
		return nil, ErrStepLocked
	}

	checklist := workflow.DecodeChecklist(step.Notes)
	checklist.Toggle(itemID)
	notes := checklist.Encode()
	if err := s.store.UpdateStepState(ctx, step.ID, model.StepStatusInProgress, notes); err != nil {
		return nil, err
	}

	step.Status = model.StepStatusInProgress
	step.Notes = notes
	return step, nil
}

// SaveNotes flushes an edited payload to the step, keeping its status
// except that an untouched step becomes IN_PROGRESS. Locked and completed
// steps cannot be written; a payload identical to the persisted one is
// skipped.
func (s *WorkflowService) SaveNotes(ctx context.Context, principal model.Principal, stepID uuid.UUID, rawNotes string) error {
	if !principal.Known() {
		return fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return err
	}
	if err := ownerGuard(principal, project); err != nil {
		return err
	}
	return s.writeNotes(ctx, step, project, rawNotes)
}

// BufferNotes queues a payload for debounced persistence, keyed by the
// captured step ID. Ownership and the step lock are checked when the edit
// is queued; the flush re-checks the step state before writing.
func (s *WorkflowService) BufferNotes(ctx context.Context, principal model.Principal, stepID uuid.UUID, rawNotes string) error {
	if !principal.Known() {
		return fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return err
	}
	if err := ownerGuard(principal, project); err != nil {
		return err
	}
	if step.Status == model.StepStatusCompleted {
		return fmt.Errorf("%w: step already completed", ErrInvalidTransition)
	}
	if step.Position > project.CurrentStepIndex {
		return ErrStepLocked
	}
	if s.saver != nil {
		s.saver.Queue(stepID, rawNotes)
	}
	return nil
}

// flushNotes is the autosave flush target. The edit was authorized when it
// was queued, so only the step state is re-checked here.
func (s *WorkflowService) flushNotes(ctx context.Context, stepID uuid.UUID, rawNotes string) error {
	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return err
	}
	return s.writeNotes(ctx, step, project, rawNotes)
}

func (s *WorkflowService) writeNotes(ctx context.Context, step *model.Step, project *model.Project, rawNotes string) error {
	if step.Status == model.StepStatusCompleted {
		return fmt.Errorf("%w: step already completed", ErrInvalidTransition)
	}
	if step.Position > project.CurrentStepIndex {
		return ErrStepLocked
	}

	notes := workflow.NormalizeNotes(step.Kind, rawNotes)
	if notes == step.Notes {
		return nil
	}

	status := step.Status
	if status == model.StepStatusNotStarted {
		status = model.StepStatusInProgress
	}
	return s.store.UpdateStepState(ctx, step.ID, status, notes)
}

// SetDocumentNumber records the external number of a step's generated
// document.
func (s *WorkflowService) SetDocumentNumber(ctx context.Context, principal model.Principal, stepID uuid.UUID, number string) error {
	if !principal.Known() {
		return fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return err
	}
	if err := ownerGuard(principal, project); err != nil {
		return err
	}
	if !step.HasDocument {
		return fmt.Errorf("%w: step has no document", ErrInvalidInput)
	}
	return s.store.SetDocumentNumber(ctx, step.ID, strings.TrimSpace(number))
}

// GetProject returns the owner's project with its steps, refreshed from the
// store.
func (s *WorkflowService) GetProject(ctx context.Context, principal model.Principal, projectID uuid.UUID) (*model.Project, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the owner's projects with their derived progress and
// urgency, recomputed on every read.
func (s *WorkflowService) ListProjects(ctx context.Context, principal model.Principal) ([]ProjectSummary, error) {
	if !principal.Known() {
		return nil, fmt.Errorf("%w: missing identity", ErrPermissionDenied)
	}
	projects, err := s.store.ListProjects(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	summaries := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		summaries = append(summaries, ProjectSummary{
			Project:  project,
			Progress: Progress(&project),
			Urgency:  Classify(project.Deadline, project.Completed(), now),
		})
	}
	return summaries, nil
}

// Checklist returns the required-document labels for the project's
// documentation step, resolved by service type and registry jurisdiction.
func (s *WorkflowService) Checklist(ctx context.Context, principal model.Principal, projectID uuid.UUID) ([]string, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	labels := workflow.ChecklistLabels(project.ServiceName, project.RegistryJurisdiction)
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}

// RenderStepDocument hands the step's structured payload to the document
// collaborator and returns the rendered file.
func (s *WorkflowService) RenderStepDocument(ctx context.Context, principal model.Principal, stepID uuid.UUID) (*StepDocumentResult, error) {
	step, project, err := s.getStepWithProject(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := ownerGuard(principal, project); err != nil {
		return nil, err
	}
	if !step.HasDocument {
		return nil, fmt.Errorf("%w: step has no document", ErrInvalidInput)
	}

	content, err := s.docs.Generate(model.StepDocument{
		ProjectTitle: project.Title,
		ClientName:   project.ClientName,
		Step:         *step,
	})
	if err != nil {
		return nil, err
	}

	name := sanitizeFileName(step.Label)
	if name == "" {
		name = step.ID.String()
	}
	return &StepDocumentResult{
		FileName: fmt.Sprintf("%s-%s.pdf", name, sanitizeFileName(project.Title)),
		Content:  content,
	}, nil
}

// Progress is the percentage position of the current step pointer. A
// single-step workflow reads 100 only once its step is completed.
func Progress(project *model.Project) int {
	total := len(project.Steps)
	switch {
	case total == 0:
		return 0
	case total == 1:
		if project.Steps[0].Status == model.StepStatusCompleted {
			return 100
		}
		return 0
	default:
		return int(math.Round(float64(project.CurrentStepIndex) / float64(total-1) * 100))
	}
}

// advance moves the pointer one step forward past position and marks the
// newly current step in progress. At the last position the pointer stays
// put.
func (s *WorkflowService) advance(ctx context.Context, project *model.Project, position int) error {
	if position >= len(project.Steps)-1 {
		return nil
	}
	if position != project.CurrentStepIndex {
		return nil
	}
	next := project.Steps[position+1]
	return s.store.AdvanceCurrentStep(ctx, project.ID, position+1, next.ID)
}

// ownerGuard rejects a principal acting on a project it does not own.
func ownerGuard(principal model.Principal, project *model.Project) error {
	if project.OwnerID != principal.UserID {
		return ErrPermissionDenied
	}
	return nil
}

func (s *WorkflowService) getProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *WorkflowService) getStep(ctx context.Context, id uuid.UUID) (*model.Step, error) {
	step, err := s.store.GetStep(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return step, nil
}

func (s *WorkflowService) getStepWithProject(ctx context.Context, stepID uuid.UUID) (*model.Step, *model.Project, error) {
	step, err := s.getStep(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.getProject(ctx, step.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return step, project, nil
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}

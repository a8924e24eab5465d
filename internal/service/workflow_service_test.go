package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/workflow"
)

type fakeStore struct {
	projects    map[uuid.UUID]*model.Project
	steps       map[uuid.UUID]*model.Step
	failReplace error
	failUpdate  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[uuid.UUID]*model.Project),
		steps:    make(map[uuid.UUID]*model.Step),
	}
}

func (f *fakeStore) addProject(serviceName, jurisdiction string, owner uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.projects[id] = &model.Project{
		ID:                   id,
		OwnerID:              owner,
		Title:                "Fazenda Boa Vista",
		ServiceName:          serviceName,
		RegistryJurisdiction: jurisdiction,
	}
	return id
}

func (f *fakeStore) GetProject(_ context.Context, id uuid.UUID) (*model.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *project
	copied.Steps = f.stepsFor(id)
	return &copied, nil
}

func (f *fakeStore) ListProjects(_ context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	for id, project := range f.projects {
		if project.OwnerID != ownerID {
			continue
		}
		copied := *project
		copied.Steps = f.stepsFor(id)
		projects = append(projects, copied)
	}
	return projects, nil
}

func (f *fakeStore) ReplaceSteps(_ context.Context, projectID uuid.UUID, steps []model.Step) error {
	if f.failReplace != nil {
		return f.failReplace
	}
	for id, step := range f.steps {
		if step.ProjectID == projectID {
			delete(f.steps, id)
		}
	}
	for i := range steps {
		step := steps[i]
		f.steps[step.ID] = &step
	}
	f.projects[projectID].CurrentStepIndex = 0
	return nil
}

func (f *fakeStore) GetStep(_ context.Context, id uuid.UUID) (*model.Step, error) {
	step, ok := f.steps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *step
	return &copied, nil
}

func (f *fakeStore) UpdateStepState(_ context.Context, id uuid.UUID, status model.StepStatus, notes string) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	step, ok := f.steps[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	step.Status = status
	step.Notes = notes
	return nil
}

func (f *fakeStore) AdvanceCurrentStep(_ context.Context, projectID uuid.UUID, index int, stepID uuid.UUID) error {
	f.projects[projectID].CurrentStepIndex = index
	if step, ok := f.steps[stepID]; ok && step.Status == model.StepStatusNotStarted {
		step.Status = model.StepStatusInProgress
	}
	return nil
}

func (f *fakeStore) SetDocumentNumber(_ context.Context, id uuid.UUID, number string) error {
	step, ok := f.steps[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if number == "" {
		step.DocumentNumber = nil
	} else {
		step.DocumentNumber = &number
	}
	return nil
}

func (f *fakeStore) stepsFor(projectID uuid.UUID) []model.Step {
	var steps []model.Step
	for _, step := range f.steps {
		if step.ProjectID == projectID {
			steps = append(steps, *step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })
	return steps
}

type stubDocs struct{}

func (stubDocs) Generate(model.StepDocument) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func newTestService(store *fakeStore) *WorkflowService {
	return NewWorkflowService(store, stubDocs{}, time.Hour, zerolog.Nop())
}

func testPrincipal() model.Principal {
	return model.Principal{UserID: uuid.New()}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("standard service gets twelve steps, first in progress", func(t *testing.T) {
		store := newFakeStore()
		principal := testPrincipal()
		projectID := store.addProject("Georreferenciamento", "uberaba", principal.UserID)

		project, err := newTestService(store).Initialize(ctx, principal, projectID)
		if err != nil {
			t.Fatalf("Initialize error: %v", err)
		}
		if len(project.Steps) != 12 {
			t.Fatalf("expected 12 steps, got %d", len(project.Steps))
		}
		if project.CurrentStepIndex != 0 {
			t.Fatalf("expected pointer at 0, got %d", project.CurrentStepIndex)
		}
		if project.Steps[0].Status != model.StepStatusInProgress {
			t.Fatalf("first step should be in progress, got %s", project.Steps[0].Status)
		}
		for _, step := range project.Steps[1:] {
			if step.Status != model.StepStatusNotStarted {
				t.Fatalf("step %d should be not started, got %s", step.Position, step.Status)
			}
		}
	})

	t.Run("car service gets six steps", func(t *testing.T) {
		store := newFakeStore()
		principal := testPrincipal()
		projectID := store.addProject("Inscrição CAR", "", principal.UserID)

		project, err := newTestService(store).Initialize(ctx, principal, projectID)
		if err != nil {
			t.Fatalf("Initialize error: %v", err)
		}
		if len(project.Steps) != 6 {
			t.Fatalf("expected 6 steps, got %d", len(project.Steps))
		}
	})

	t.Run("documentation step is seeded with the jurisdiction checklist", func(t *testing.T) {
		store := newFakeStore()
		principal := testPrincipal()
		projectID := store.addProject("Georreferenciamento", "uberaba", principal.UserID)

		project, err := newTestService(store).Initialize(ctx, principal, projectID)
		if err != nil {
			t.Fatalf("Initialize error: %v", err)
		}
		for _, step := range project.Steps {
			if step.Kind != model.StepKindDocumentation {
				continue
			}
			checklist := workflow.DecodeChecklist(step.Notes)
			if len(checklist) == 0 {
				t.Fatal("expected seeded checklist for a known jurisdiction")
			}
			return
		}
		t.Fatal("no documentation step found")
	})

	t.Run("destructive idempotent: a second run leaves exactly one full set", func(t *testing.T) {
		store := newFakeStore()
		principal := testPrincipal()
		projectID := store.addProject("Georreferenciamento", "", principal.UserID)
		svc := newTestService(store)

		if _, err := svc.Initialize(ctx, principal, projectID); err != nil {
			t.Fatalf("first Initialize error: %v", err)
		}
		project, err := svc.Initialize(ctx, principal, projectID)
		if err != nil {
			t.Fatalf("second Initialize error: %v", err)
		}
		if len(project.Steps) != 12 {
			t.Fatalf("expected 12 steps after re-init, got %d", len(project.Steps))
		}
		if len(store.steps) != 12 {
			t.Fatalf("store holds %d steps, expected 12", len(store.steps))
		}
	})

	t.Run("missing identity aborts with no state", func(t *testing.T) {
		store := newFakeStore()
		projectID := store.addProject("Georreferenciamento", "", uuid.New())

		_, err := newTestService(store).Initialize(ctx, model.Principal{}, projectID)
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		if len(store.steps) != 0 {
			t.Fatal("no steps must be created without an identity")
		}
	})

	t.Run("store failure leaves no partial set", func(t *testing.T) {
		store := newFakeStore()
		principal := testPrincipal()
		projectID := store.addProject("Georreferenciamento", "", principal.UserID)
		store.failReplace = errors.New("db down")

		_, err := newTestService(store).Initialize(ctx, principal, projectID)
		if err == nil {
			t.Fatal("expected an error")
		}
		if len(store.steps) != 0 {
			t.Fatalf("expected no steps after failed replace, got %d", len(store.steps))
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		store := newFakeStore()
		_, err := newTestService(store).Initialize(ctx, testPrincipal(), uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func initProject(t *testing.T, store *fakeStore, svc *WorkflowService, principal model.Principal, serviceName string) *model.Project {
	t.Helper()
	projectID := store.addProject(serviceName, "uberaba", principal.UserID)
	project, err := svc.Initialize(context.Background(), principal, projectID)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	return project
}

// approveTo submits and approves every step before position, leaving the
// pointer there.
func approveTo(t *testing.T, svc *WorkflowService, principal model.Principal, project *model.Project, position int) *model.Project {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < position; i++ {
		step := project.Steps[i]
		if _, err := svc.RequestApproval(ctx, principal, step.ID, ""); err != nil {
			t.Fatalf("RequestApproval at %d: %v", i, err)
		}
		var err error
		project, err = svc.ApproveStep(ctx, principal, step.ID)
		if err != nil {
			t.Fatalf("ApproveStep at %d: %v", i, err)
		}
	}
	return project
}

func TestRequestApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("standard kind moves to waiting approval without advancing", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		budget := project.Steps[0]
		updated, err := svc.RequestApproval(ctx, principal, budget.ID, `[{"description":"Campo","qty":1,"price":2500}]`)
		if err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		if updated.Steps[0].Status != model.StepStatusWaitingApproval {
			t.Fatalf("expected WAITING_APPROVAL, got %s", updated.Steps[0].Status)
		}
		if updated.CurrentStepIndex != 0 {
			t.Fatalf("pointer must not advance, got %d", updated.CurrentStepIndex)
		}
	})

	t.Run("payload persists atomically with the status", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		payload := `[{"description":"Campo","qty":1,"price":2500}]`
		if _, err := svc.RequestApproval(ctx, principal, project.Steps[0].ID, payload); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		step := store.steps[project.Steps[0].ID]
		if step.Notes != payload {
			t.Fatalf("expected payload to be written with the status, got %q", step.Notes)
		}
	})

	t.Run("self-certifying kind completes and advances by one", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		// Walk to the documentation step (position 4).
		project = approveTo(t, svc, principal, project, 4)
		if project.CurrentStepIndex != 4 {
			t.Fatalf("expected pointer at 4, got %d", project.CurrentStepIndex)
		}
		doc := project.Steps[4]
		if doc.Kind != model.StepKindDocumentation {
			t.Fatalf("expected documentation step at 4, got %s", doc.Kind)
		}

		project, err := svc.RequestApproval(ctx, principal, doc.ID, `{"CCIR":true}`)
		if err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		if project.Steps[4].Status != model.StepStatusCompleted {
			t.Fatalf("expected COMPLETED, got %s", project.Steps[4].Status)
		}
		if project.CurrentStepIndex != 5 {
			t.Fatalf("expected pointer at 5, got %d", project.CurrentStepIndex)
		}
	})

	t.Run("locked step cannot be submitted", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		_, err := svc.RequestApproval(ctx, principal, project.Steps[3].ID, "")
		if !errors.Is(err, ErrStepLocked) {
			t.Fatalf("expected ErrStepLocked, got %v", err)
		}
	})

	t.Run("completed step is terminal", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		step := project.Steps[0]
		if _, err := svc.RequestApproval(ctx, principal, step.ID, ""); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		if _, err := svc.ApproveStep(ctx, principal, step.ID); err != nil {
			t.Fatalf("ApproveStep error: %v", err)
		}
		_, err := svc.RequestApproval(ctx, principal, step.ID, "")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestApproveStep(t *testing.T) {
	ctx := context.Background()

	t.Run("approve advances and unlocks the next step", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		step := project.Steps[0]
		if _, err := svc.RequestApproval(ctx, principal, step.ID, ""); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		project, err := svc.ApproveStep(ctx, principal, step.ID)
		if err != nil {
			t.Fatalf("ApproveStep error: %v", err)
		}
		if project.Steps[0].Status != model.StepStatusCompleted {
			t.Fatalf("expected COMPLETED, got %s", project.Steps[0].Status)
		}
		if project.CurrentStepIndex != 1 {
			t.Fatalf("expected pointer at 1, got %d", project.CurrentStepIndex)
		}
		if project.Steps[1].Status != model.StepStatusInProgress {
			t.Fatalf("next step should be in progress, got %s", project.Steps[1].Status)
		}
	})

	t.Run("approving the last step keeps the pointer in bounds", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Inscrição CAR")

		// Complete every step up to the last.
		for i := 0; i < len(project.Steps); i++ {
			step := project.Steps[i]
			if _, err := svc.RequestApproval(ctx, principal, step.ID, ""); err != nil {
				t.Fatalf("RequestApproval at %d: %v", i, err)
			}
			var err error
			project, err = svc.GetProject(ctx, principal, project.ID)
			if err != nil {
				t.Fatalf("GetProject at %d: %v", i, err)
			}
			if project.Steps[i].Status == model.StepStatusWaitingApproval {
				project, err = svc.ApproveStep(ctx, principal, step.ID)
				if err != nil {
					t.Fatalf("ApproveStep at %d: %v", i, err)
				}
			}
		}

		last := len(project.Steps) - 1
		if project.CurrentStepIndex != last {
			t.Fatalf("expected pointer at %d, got %d", last, project.CurrentStepIndex)
		}
		if project.Steps[last].Status != model.StepStatusCompleted {
			t.Fatalf("last step should be completed, got %s", project.Steps[last].Status)
		}
		if !project.Completed() {
			t.Fatal("project should report completed")
		}
	})

	t.Run("approving a non-waiting step is an invalid transition", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		_, err := svc.ApproveStep(ctx, principal, project.Steps[0].ID)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestRejectStep(t *testing.T) {
	ctx := context.Background()

	t.Run("reject blocks the project until resubmission", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		step := project.Steps[0]
		payload := `[{"description":"Campo","qty":1,"price":2500}]`
		if _, err := svc.RequestApproval(ctx, principal, step.ID, payload); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		project, err := svc.RejectStep(ctx, principal, step.ID)
		if err != nil {
			t.Fatalf("RejectStep error: %v", err)
		}
		if project.Steps[0].Status != model.StepStatusRejected {
			t.Fatalf("expected REJECTED, got %s", project.Steps[0].Status)
		}
		if project.CurrentStepIndex != 0 {
			t.Fatalf("pointer must not move on reject, got %d", project.CurrentStepIndex)
		}

		// Resubmission with the unchanged payload returns to waiting.
		project, err = svc.RequestApproval(ctx, principal, step.ID, payload)
		if err != nil {
			t.Fatalf("resubmit error: %v", err)
		}
		if project.Steps[0].Status != model.StepStatusWaitingApproval {
			t.Fatalf("expected WAITING_APPROVAL after resubmit, got %s", project.Steps[0].Status)
		}
		if project.Steps[0].Notes != payload {
			t.Fatalf("payload must survive the reject cycle, got %q", project.Steps[0].Notes)
		}
		if project.CurrentStepIndex != 0 {
			t.Fatalf("pointer must stay at 0, got %d", project.CurrentStepIndex)
		}
	})

	t.Run("rejecting a non-waiting step is an invalid transition", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		_, err := svc.RejectStep(ctx, principal, project.Steps[0].ID)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestToggleChecklistItem(t *testing.T) {
	ctx := context.Background()

	findDocumentation := func(project *model.Project) *model.Step {
		for i := range project.Steps {
			if project.Steps[i].Kind == model.StepKindDocumentation {
				return &project.Steps[i]
			}
		}
		return nil
	}

	t.Run("toggle twice restores the serialized map", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")
		project = approveTo(t, svc, principal, project, 4)

		doc := findDocumentation(project)
		before := doc.Notes
		if _, err := svc.ToggleChecklistItem(ctx, principal, doc.ID, "CCIR"); err != nil {
			t.Fatalf("first toggle error: %v", err)
		}
		step, err := svc.ToggleChecklistItem(ctx, principal, doc.ID, "CCIR")
		if err != nil {
			t.Fatalf("second toggle error: %v", err)
		}
		if workflow.DecodeChecklist(step.Notes)["CCIR"] != workflow.DecodeChecklist(before)["CCIR"] {
			t.Fatal("double toggle must restore the item")
		}
	})

	t.Run("toggle writes in progress immediately", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")
		project = approveTo(t, svc, principal, project, 4)

		doc := findDocumentation(project)
		step, err := svc.ToggleChecklistItem(ctx, principal, doc.ID, "CCIR")
		if err != nil {
			t.Fatalf("toggle error: %v", err)
		}
		if step.Status != model.StepStatusInProgress {
			t.Fatalf("expected IN_PROGRESS, got %s", step.Status)
		}
		if !workflow.DecodeChecklist(store.steps[doc.ID].Notes)["CCIR"] {
			t.Fatal("toggle must be persisted")
		}
	})

	t.Run("a locked documentation step cannot be toggled", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		doc := findDocumentation(project)
		before := store.steps[doc.ID].Notes
		if _, err := svc.ToggleChecklistItem(ctx, principal, doc.ID, "CCIR"); !errors.Is(err, ErrStepLocked) {
			t.Fatalf("expected ErrStepLocked, got %v", err)
		}
		saved := store.steps[doc.ID]
		if saved.Status != model.StepStatusNotStarted {
			t.Fatalf("locked step must stay NOT_STARTED, got %s", saved.Status)
		}
		if saved.Notes != before {
			t.Fatal("locked step notes must not change")
		}
	})

	t.Run("only documentation steps have a checklist", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		_, err := svc.ToggleChecklistItem(ctx, principal, project.Steps[0].ID, "CCIR")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestSelectStep(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	principal := testPrincipal()
	project := initProject(t, store, svc, principal, "Georreferenciamento")

	t.Run("current and earlier steps are viewable", func(t *testing.T) {
		if _, err := svc.SelectStep(project, 0); err != nil {
			t.Fatalf("SelectStep(0) error: %v", err)
		}
	})

	t.Run("steps beyond the pointer are locked", func(t *testing.T) {
		if _, err := svc.SelectStep(project, 1); !errors.Is(err, ErrStepLocked) {
			t.Fatalf("expected ErrStepLocked, got %v", err)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		if _, err := svc.SelectStep(project, 99); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := svc.SelectStep(project, -1); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("uninitialized project", func(t *testing.T) {
		if _, err := svc.SelectStep(&model.Project{}, 0); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("expected ErrNotInitialized, got %v", err)
		}
	})
}

func TestProgress(t *testing.T) {
	step := func(status model.StepStatus) model.Step {
		return model.Step{Status: status}
	}
	steps := func(n int) []model.Step {
		result := make([]model.Step, n)
		return result
	}

	cases := []struct {
		name    string
		project model.Project
		want    int
	}{
		{"no steps", model.Project{}, 0},
		{"single step not completed", model.Project{Steps: []model.Step{step(model.StepStatusInProgress)}}, 0},
		{"single step completed", model.Project{Steps: []model.Step{step(model.StepStatusCompleted)}}, 100},
		{"two steps at start", model.Project{CurrentStepIndex: 0, Steps: steps(2)}, 0},
		{"two steps at end", model.Project{CurrentStepIndex: 1, Steps: steps(2)}, 100},
		{"six steps at end", model.Project{CurrentStepIndex: 5, Steps: steps(6)}, 100},
		{"twelve steps at start", model.Project{CurrentStepIndex: 0, Steps: steps(12)}, 0},
		{"twelve steps midway", model.Project{CurrentStepIndex: 5, Steps: steps(12)}, 45},
		{"twelve steps at end", model.Project{CurrentStepIndex: 11, Steps: steps(12)}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Progress(&tc.project); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSaveNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("saving marks an untouched step in progress", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		if _, err := svc.RequestApproval(ctx, principal, project.Steps[0].ID, ""); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		var err error
		if project, err = svc.ApproveStep(ctx, principal, project.Steps[0].ID); err != nil {
			t.Fatalf("ApproveStep error: %v", err)
		}

		contract := project.Steps[1]
		if err := svc.SaveNotes(ctx, principal, contract.ID, "minuta enviada"); err != nil {
			t.Fatalf("SaveNotes error: %v", err)
		}
		saved := store.steps[contract.ID]
		if saved.Notes != "minuta enviada" {
			t.Fatalf("unexpected notes %q", saved.Notes)
		}
		if saved.Status != model.StepStatusInProgress {
			t.Fatalf("expected IN_PROGRESS, got %s", saved.Status)
		}
	})

	t.Run("identical payload is skipped", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		step := project.Steps[0]
		if err := svc.SaveNotes(ctx, principal, step.ID, "v1"); err != nil {
			t.Fatalf("SaveNotes error: %v", err)
		}
		store.failUpdate = errors.New("should not write")
		if err := svc.SaveNotes(ctx, principal, step.ID, "v1"); err != nil {
			t.Fatalf("redundant SaveNotes must be a no-op, got %v", err)
		}
	})

	t.Run("steps beyond the pointer cannot be written", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		locked := project.Steps[5]
		if err := svc.SaveNotes(ctx, principal, locked.ID, "adiantado"); !errors.Is(err, ErrStepLocked) {
			t.Fatalf("expected ErrStepLocked, got %v", err)
		}
		saved := store.steps[locked.ID]
		if saved.Status != model.StepStatusNotStarted {
			t.Fatalf("locked step must stay NOT_STARTED, got %s", saved.Status)
		}
		if saved.Notes != "" {
			t.Fatalf("locked step must keep empty notes, got %q", saved.Notes)
		}
	})

	t.Run("buffering an edit for a locked step is rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		if err := svc.BufferNotes(ctx, principal, project.Steps[4].ID, "adiantado"); !errors.Is(err, ErrStepLocked) {
			t.Fatalf("expected ErrStepLocked, got %v", err)
		}
	})

	t.Run("buffering for the current step queues without error", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		if err := svc.BufferNotes(ctx, principal, project.Steps[0].ID, "rascunho"); err != nil {
			t.Fatalf("BufferNotes error: %v", err)
		}
		svc.Saver().Cancel()
	})

	t.Run("completed steps cannot be edited", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		principal := testPrincipal()
		project := initProject(t, store, svc, principal, "Georreferenciamento")

		step := project.Steps[0]
		if _, err := svc.RequestApproval(ctx, principal, step.ID, ""); err != nil {
			t.Fatalf("RequestApproval error: %v", err)
		}
		if _, err := svc.ApproveStep(ctx, principal, step.ID); err != nil {
			t.Fatalf("ApproveStep error: %v", err)
		}
		if err := svc.SaveNotes(ctx, principal, step.ID, "late edit"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestListProjects(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store)
	principal := testPrincipal()
	project := initProject(t, store, svc, principal, "Georreferenciamento")

	deadline := time.Now().Add(48 * time.Hour)
	store.projects[project.ID].Deadline = &deadline

	summaries, err := svc.ListProjects(ctx, principal)
	if err != nil {
		t.Fatalf("ListProjects error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 project, got %d", len(summaries))
	}
	if summaries[0].Progress != 0 {
		t.Fatalf("expected progress 0, got %d", summaries[0].Progress)
	}
	if summaries[0].Urgency != UrgencyCritical {
		t.Fatalf("expected critical urgency, got %s", summaries[0].Urgency)
	}
}

func TestRenderStepDocument(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store)
	principal := testPrincipal()
	project := initProject(t, store, svc, principal, "Georreferenciamento")

	t.Run("document steps render", func(t *testing.T) {
		result, err := svc.RenderStepDocument(ctx, principal, project.Steps[0].ID)
		if err != nil {
			t.Fatalf("RenderStepDocument error: %v", err)
		}
		if len(result.Content) == 0 || result.FileName == "" {
			t.Fatalf("unexpected result %+v", result)
		}
	})

	t.Run("documentless steps are rejected", func(t *testing.T) {
		var documentless *model.Step
		for i := range project.Steps {
			if !project.Steps[i].HasDocument {
				documentless = &project.Steps[i]
				break
			}
		}
		if documentless == nil {
			t.Fatal("expected a documentless step in the standard flow")
		}
		if _, err := svc.RenderStepDocument(ctx, principal, documentless.ID); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store)
	owner := testPrincipal()
	intruder := testPrincipal()
	project := initProject(t, store, svc, owner, "Georreferenciamento")
	step := project.Steps[0]

	cases := []struct {
		name string
		call func() error
	}{
		{"initialize", func() error {
			_, err := svc.Initialize(ctx, intruder, project.ID)
			return err
		}},
		{"get project", func() error {
			_, err := svc.GetProject(ctx, intruder, project.ID)
			return err
		}},
		{"checklist", func() error {
			_, err := svc.Checklist(ctx, intruder, project.ID)
			return err
		}},
		{"request approval", func() error {
			_, err := svc.RequestApproval(ctx, intruder, step.ID, "")
			return err
		}},
		{"approve", func() error {
			_, err := svc.ApproveStep(ctx, intruder, step.ID)
			return err
		}},
		{"reject", func() error {
			_, err := svc.RejectStep(ctx, intruder, step.ID)
			return err
		}},
		{"toggle checklist", func() error {
			_, err := svc.ToggleChecklistItem(ctx, intruder, step.ID, "CCIR")
			return err
		}},
		{"save notes", func() error {
			return svc.SaveNotes(ctx, intruder, step.ID, "invasivo")
		}},
		{"buffer notes", func() error {
			return svc.BufferNotes(ctx, intruder, step.ID, "invasivo")
		}},
		{"set document number", func() error {
			return svc.SetDocumentNumber(ctx, intruder, step.ID, "001")
		}},
		{"render document", func() error {
			_, err := svc.RenderStepDocument(ctx, intruder, step.ID)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
		})
	}

	if store.steps[step.ID].Status != model.StepStatusInProgress {
		t.Fatalf("foreign calls must not change step state, got %s", store.steps[step.ID].Status)
	}
}

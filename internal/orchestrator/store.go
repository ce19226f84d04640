package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// TaskStore persists AnalysisTask and AnalysisReport records and resolves
// which related projects are tracked against a main repository. The core
// specifies only this contract; production deployments back it with a
// real database.
type TaskStore interface {
	SaveTask(ctx context.Context, task *model.AnalysisTask) error
	GetTask(ctx context.Context, id string) (*model.AnalysisTask, error)
	SaveReport(ctx context.Context, report model.AnalysisReport) error
	ReportsForTask(ctx context.Context, taskID string) ([]model.AnalysisReport, error)
	// LoadProjectRelations returns every active ProjectRelation configured
	// for mainGitURL.
	LoadProjectRelations(ctx context.Context, mainGitURL string) ([]model.ProjectRelation, error)
}

// MemoryStore is an in-process TaskStore reference implementation, used by
// the CLI and by tests. Project relations are seeded once at startup via
// SeedRelations rather than persisted across runs.
type MemoryStore struct {
	mu        sync.Mutex
	tasks     map[string]*model.AnalysisTask
	reports   map[string][]model.AnalysisReport
	relations []model.ProjectRelation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:   make(map[string]*model.AnalysisTask),
		reports: make(map[string][]model.AnalysisReport),
	}
}

// SeedRelations replaces the store's known project relations, typically
// called once at startup with rows derived from the configuration file.
func (s *MemoryStore) SeedRelations(relations []model.ProjectRelation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.relations = relations
}

// LoadProjectRelations returns every active relation configured for
// mainGitURL.
func (s *MemoryStore) LoadProjectRelations(_ context.Context, mainGitURL string) ([]model.ProjectRelation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ProjectRelation

	for _, rel := range s.relations {
		if rel.Active && rel.MainGitURL == mainGitURL {
			out = append(out, rel)
		}
	}

	return out, nil
}

// SaveTask stores a copy of task keyed by its ID.
func (s *MemoryStore) SaveTask(_ context.Context, task *model.AnalysisTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp

	return nil
}

// GetTask returns the stored task, or an error if it is unknown.
func (s *MemoryStore) GetTask(_ context.Context, id string) (*model.AnalysisTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("orchestrator: unknown task %s", id)
	}

	cp := *task

	return &cp, nil
}

// SaveReport appends report to its task's report list.
func (s *MemoryStore) SaveReport(_ context.Context, report model.AnalysisReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[report.TaskID] = append(s.reports[report.TaskID], report)

	return nil
}

// ReportsForTask returns every report recorded for taskID, in save order,
// which follows the diff order the files were analyzed in.
func (s *MemoryStore) ReportsForTask(_ context.Context, taskID string) ([]model.AnalysisReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := s.reports[taskID]
	out := make([]model.AnalysisReport, len(reports))
	copy(out, reports)

	return out, nil
}

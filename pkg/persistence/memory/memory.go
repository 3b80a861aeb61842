// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
// Write-once guards (job results, help resolutions) and the position
// compare-and-set are enforced under the same lock the SQL implementation
// enforces with constraints and row predicates.
type Persistence struct {
	mu sync.RWMutex

	nodes map[string]*models.Node
	edges map[string][]string // from node id -> to node ids

	flows       map[string]*models.Flow
	assignments map[string][]string // flow id -> node ids, insertion order
	exits       map[string]map[string]struct{}

	positions     map[positionKey]*models.TaskFlowPosition
	nextOrder     int64
	jobs          map[string]*models.Job
	jobOrder      []string
	results       map[string]*models.JobResult
	helps         map[string]*models.HelpRequest
	helpOrder     []string
	resolutions   map[string]*models.HelpResolution
	actions       map[string]*models.ResolutionAction
	actionOrder   []string
	filesByAction map[string][]*models.ResolutionFile
}

type positionKey struct {
	taskID string
	flowID string
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		nodes:         make(map[string]*models.Node),
		edges:         make(map[string][]string),
		flows:         make(map[string]*models.Flow),
		assignments:   make(map[string][]string),
		exits:         make(map[string]map[string]struct{}),
		positions:     make(map[positionKey]*models.TaskFlowPosition),
		jobs:          make(map[string]*models.Job),
		results:       make(map[string]*models.JobResult),
		helps:         make(map[string]*models.HelpRequest),
		resolutions:   make(map[string]*models.HelpResolution),
		actions:       make(map[string]*models.ResolutionAction),
		filesByAction: make(map[string][]*models.ResolutionFile),
	}
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return &graphRepository{store: p}
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return &flowRepository{store: p}
}

func (p *Persistence) PositionRepository() persistence.PositionRepository {
	return &positionRepository{store: p}
}

func (p *Persistence) JobRepository() persistence.JobRepository {
	return &jobRepository{store: p}
}

func (p *Persistence) HelpRepository() persistence.HelpRepository {
	return &helpRepository{store: p}
}

// HealthCheck always succeeds for in-memory persistence.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close performs no cleanup for in-memory persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

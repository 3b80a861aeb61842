package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type helpRepository struct {
	store *Persistence
}

func (hr *helpRepository) SaveHelp(_ context.Context, help *models.HelpRequest) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.jobs[help.JobID]; !ok {
		return persistence.NewJobError("SaveHelp", help.JobID, persistence.ErrJobNotFound)
	}

	if _, exists := hr.store.helps[help.ID]; !exists {
		hr.store.helpOrder = append(hr.store.helpOrder, help.ID)
	}

	saved := *help
	hr.store.helps[help.ID] = &saved

	return nil
}

func (hr *helpRepository) HelpByID(_ context.Context, id string) (*models.HelpRequest, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	help, ok := hr.store.helps[id]
	if !ok {
		return nil, persistence.ErrHelpNotFound
	}

	found := *help

	return &found, nil
}

func (hr *helpRepository) OpenHelpCount(_ context.Context, jobID string) (int, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	count := 0

	for _, help := range hr.store.helps {
		if help.JobID != jobID {
			continue
		}

		if _, resolved := hr.store.resolutions[help.ID]; !resolved {
			count++
		}
	}

	return count, nil
}

// NextOpenHelp returns the oldest unresolved help request for the job, or
// ErrHelpNotFound when none remain open.
func (hr *helpRepository) NextOpenHelp(_ context.Context, jobID string) (*models.HelpRequest, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	for _, helpID := range hr.store.helpOrder {
		help := hr.store.helps[helpID]
		if help.JobID != jobID {
			continue
		}

		if _, resolved := hr.store.resolutions[helpID]; resolved {
			continue
		}

		found := *help

		return &found, nil
	}

	return nil, persistence.ErrHelpNotFound
}

func (hr *helpRepository) SaveResolution(_ context.Context, resolution *models.HelpResolution) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.helps[resolution.HelpID]; !ok {
		return persistence.ErrHelpNotFound
	}

	if _, exists := hr.store.resolutions[resolution.HelpID]; exists {
		return persistence.ErrHelpAlreadyResolved
	}

	saved := *resolution
	hr.store.resolutions[resolution.HelpID] = &saved

	return nil
}

func (hr *helpRepository) ResolutionByHelpID(_ context.Context, helpID string) (*models.HelpResolution, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	resolution, ok := hr.store.resolutions[helpID]
	if !ok {
		return nil, persistence.ErrHelpNotFound
	}

	found := *resolution

	return &found, nil
}

func (hr *helpRepository) SaveAction(_ context.Context, action *models.ResolutionAction) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.helps[action.HelpID]; !ok {
		return persistence.ErrHelpNotFound
	}

	if _, exists := hr.store.actions[action.ID]; !exists {
		hr.store.actionOrder = append(hr.store.actionOrder, action.ID)
	}

	saved := *action
	hr.store.actions[action.ID] = &saved

	return nil
}

func (hr *helpRepository) ActionByID(_ context.Context, id string) (*models.ResolutionAction, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	action, ok := hr.store.actions[id]
	if !ok {
		return nil, persistence.ErrActionNotFound
	}

	found := *action

	return &found, nil
}

func (hr *helpRepository) UpdateAction(_ context.Context, action *models.ResolutionAction) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	existing, ok := hr.store.actions[action.ID]
	if !ok {
		return persistence.ErrActionNotFound
	}

	existing.ActionTaken = action.ActionTaken

	return nil
}

// DeleteAction removes the action and its attached files.
func (hr *helpRepository) DeleteAction(_ context.Context, id string) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.actions[id]; !ok {
		return persistence.ErrActionNotFound
	}

	delete(hr.store.actions, id)
	delete(hr.store.filesByAction, id)

	hr.store.actionOrder = slices.DeleteFunc(hr.store.actionOrder, func(actionID string) bool {
		return actionID == id
	})

	return nil
}

func (hr *helpRepository) ActionsByHelpID(_ context.Context, helpID string) ([]*models.ActionWithFiles, error) {
	hr.store.mu.RLock()
	defer hr.store.mu.RUnlock()

	var denormalized []*models.ActionWithFiles

	for _, actionID := range hr.store.actionOrder {
		action := hr.store.actions[actionID]
		if action.HelpID != helpID {
			continue
		}

		actionCopy := *action
		entry := &models.ActionWithFiles{Action: &actionCopy, Files: []string{}}

		for _, file := range hr.store.filesByAction[actionID] {
			entry.Files = append(entry.Files, file.FileName)
		}

		denormalized = append(denormalized, entry)
	}

	return denormalized, nil
}

func (hr *helpRepository) SaveFile(_ context.Context, file *models.ResolutionFile) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.actions[file.ActionID]; !ok {
		return persistence.ErrActionNotFound
	}

	saved := *file
	hr.store.filesByAction[file.ActionID] = append(hr.store.filesByAction[file.ActionID], &saved)

	return nil
}

func (hr *helpRepository) ReplaceFiles(_ context.Context, actionID string, fileNames []string) error {
	hr.store.mu.Lock()
	defer hr.store.mu.Unlock()

	if _, ok := hr.store.actions[actionID]; !ok {
		return persistence.ErrActionNotFound
	}

	files := make([]*models.ResolutionFile, 0, len(fileNames))
	for _, name := range fileNames {
		files = append(files, &models.ResolutionFile{
			ID:       uuid.New().String(),
			ActionID: actionID,
			FileName: name,
		})
	}

	hr.store.filesByAction[actionID] = files

	return nil
}

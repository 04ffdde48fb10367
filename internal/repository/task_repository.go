// internal/repository/task_repository.go
package repository

import (
	"encoding/json"
	"os"
	"sync"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type TaskRepositoryInterface interface {
	LoadAll() ([]*model.ScheduledTask, error)
	Save(task *model.ScheduledTask) error
	Delete(id string) error
}

// TaskRepository stores every scheduled task in one JSON array document.
// Writes are read-merge-write under a single lock.
type TaskRepository struct {
	Path string

	mu sync.Mutex
}

func NewTaskRepository(path string) *TaskRepository {
	return &TaskRepository{Path: path}
}

func (r *TaskRepository) LoadAll() ([]*model.ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *TaskRepository) read() ([]*model.ScheduledTask, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.ScheduledTask{}, nil
		}
		return nil, appErrors.NewPersistence("read tasks", err)
	}
	tasks := []*model.ScheduledTask{}
	if len(data) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, appErrors.NewPersistence("decode tasks", err)
	}
	return tasks, nil
}

// Save inserts or replaces the record with the task's id.
func (r *TaskRepository) Save(task *model.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, t := range tasks {
		if t.ID == task.ID {
			tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	if err := writeJSONAtomic(r.Path, tasks); err != nil {
		return appErrors.NewPersistence("write tasks", err)
	}
	return nil
}

func (r *TaskRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.read()
	if err != nil {
		return err
	}
	kept := tasks[:0]
	found := false
	for _, t := range tasks {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return appErrors.NewNotFound("task", id)
	}
	if err := writeJSONAtomic(r.Path, kept); err != nil {
		return appErrors.NewPersistence("write tasks", err)
	}
	return nil
}

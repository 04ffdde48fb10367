// internal/handler/task_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/bulk-messenger/internal/controller"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/scheduler"
)

// TaskHandler exposes the scheduler over HTTP
type TaskHandler struct {
	Scheduler *scheduler.Scheduler
	Log       *logger.Logger
}

func NewTaskHandler(s *scheduler.Scheduler, log *logger.Logger) *TaskHandler {
	return &TaskHandler{Scheduler: s, Log: log}
}

func (h *TaskHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	tasks := h.Scheduler.List()
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tasks":   tasks,
		"count":   len(tasks),
	})
}

func (h *TaskHandler) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	var payload scheduler.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		controller.WriteBadRequest(w, "invalid request body")
		return
	}

	task, err := h.Scheduler.Create(payload)
	if err != nil {
		controller.WriteError(w, h.Log, "Failed to schedule task", err)
		return
	}
	controller.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "task": task})
}

func (h *TaskHandler) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := h.Scheduler.Get(chi.URLParam(r, "id"))
	if err != nil {
		controller.WriteError(w, h.Log, "Failed to fetch task", err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

// PurgeTaskHandler cancels a task and removes its record
func (h *TaskHandler) PurgeTaskHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Scheduler.Purge(id); err != nil {
		controller.WriteError(w, h.Log, "Failed to delete task", err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Task deleted", "id": id})
}

func (h *TaskHandler) PauseTaskHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to pause task", h.Scheduler.Pause)
}

func (h *TaskHandler) ResumeTaskHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to resume task", h.Scheduler.Resume)
}

func (h *TaskHandler) CancelTaskHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to cancel task", h.Scheduler.Cancel)
}

// RunTaskHandler executes a task once, outside its schedule
func (h *TaskHandler) RunTaskHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to run task", h.Scheduler.RunNow)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, summary string, fn func(id string) (*model.ScheduledTask, error)) {
	task, err := fn(chi.URLParam(r, "id"))
	if err != nil {
		controller.WriteError(w, h.Log, summary, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "task": task})
}

func (h *TaskHandler) CommonSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"schedules": scheduler.CommonSchedules(),
	})
}

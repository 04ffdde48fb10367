// internal/model/task.go
package model

import "time"

type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCancelled TaskStatus = "cancelled"
)

// ScheduledTask is a persisted, recurring campaign definition driven by a cron expression.
type ScheduledTask struct {
	ID                 string          `json:"id"`
	Type               Channel         `json:"type"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	CronExpression     string          `json:"cronExpression"`
	Timezone           string          `json:"timezone,omitempty"`
	Contacts           []Contact       `json:"contacts"`
	Template           string          `json:"template,omitempty"`
	Message            string          `json:"message,omitempty"`
	Subject            string          `json:"subject,omitempty"`
	CustomizationLevel Level           `json:"customizationLevel,omitempty"`
	AIContext          *AIContext      `json:"aiContext,omitempty"`
	DelayMs            int64           `json:"delay"`
	Status             TaskStatus      `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
	LastRun            *time.Time      `json:"lastRun,omitempty"`
	NextRun            *time.Time      `json:"nextRun,omitempty"`
	LastResult         *CampaignResult `json:"lastResult,omitempty"`
	LastError          string          `json:"lastError,omitempty"`
}

func (t *ScheduledTask) Delay() time.Duration {
	return time.Duration(t.DelayMs) * time.Millisecond
}

// Clone returns a deep copy so callers never share the scheduler's record.
func (t *ScheduledTask) Clone() *ScheduledTask {
	if t == nil {
		return nil
	}
	out := *t
	out.Contacts = make([]Contact, len(t.Contacts))
	for i, c := range t.Contacts {
		out.Contacts[i] = c.Clone()
	}
	if t.AIContext != nil {
		ai := *t.AIContext
		ai.KeyPoints = append([]string(nil), t.AIContext.KeyPoints...)
		out.AIContext = &ai
	}
	if t.LastRun != nil {
		lr := *t.LastRun
		out.LastRun = &lr
	}
	if t.NextRun != nil {
		nr := *t.NextRun
		out.NextRun = &nr
	}
	if t.LastResult != nil {
		res := *t.LastResult
		res.Errors = append([]RecipientError(nil), t.LastResult.Errors...)
		res.Warnings = append([]RecipientError(nil), t.LastResult.Warnings...)
		out.LastResult = &res
	}
	return &out
}

// TaskSummary is the listing view of a scheduled task.
type TaskSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           Channel    `json:"type"`
	CronExpression string     `json:"cronExpression"`
	Status         TaskStatus `json:"status"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (t *ScheduledTask) Summary() TaskSummary {
	return TaskSummary{
		ID:             t.ID,
		Name:           t.Name,
		Type:           t.Type,
		CronExpression: t.CronExpression,
		Status:         t.Status,
		NextRun:        t.NextRun,
		LastRun:        t.LastRun,
		CreatedAt:      t.CreatedAt,
	}
}

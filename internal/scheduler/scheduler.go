// Package scheduler drives persisted campaign definitions from cron expressions.
//
// Two layers are kept apart: the task repository is the durable source of truth,
// and the live map from task id to cron entry holds the armed triggers. They are
// reconciled at Start and on every status transition.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

// Runner executes one campaign. *service.CampaignService implements it.
type Runner interface {
	Run(ctx context.Context, contacts []model.Contact, opts service.RunOptions) (*model.CampaignResult, error)
}

// TaskInput is a scheduling request.
type TaskInput struct {
	Type               model.Channel    `json:"type"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	CronExpression     string           `json:"cronExpression"`
	Timezone           string           `json:"timezone"`
	Contacts           []model.Contact  `json:"contacts"`
	Template           string           `json:"template"`
	Message            string           `json:"message"`
	Subject            string           `json:"subject"`
	CustomizationLevel model.Level      `json:"customizationLevel"`
	AIContext          *model.AIContext `json:"aiContext"`
	// DelayMs is milliseconds between sends; nil uses the channel default
	DelayMs *int64 `json:"delay"`
}

// Schedule is a named cron expression offered to callers.
type Schedule struct {
	Label      string `json:"label"`
	Expression string `json:"expression"`
}

func CommonSchedules() []Schedule {
	return []Schedule{
		{"Every minute", "* * * * *"},
		{"Every 5 minutes", "*/5 * * * *"},
		{"Every 15 minutes", "*/15 * * * *"},
		{"Every 30 minutes", "*/30 * * * *"},
		{"Every hour", "0 * * * *"},
		{"Every 2 hours", "0 */2 * * *"},
		{"Every day at 9 AM", "0 9 * * *"},
		{"Every weekday at 9 AM", "0 9 * * 1-5"},
		{"Every Monday at 9 AM", "0 9 * * 1"},
		{"Every month on the 1st at 9 AM", "0 9 1 * *"},
	}
}

type Scheduler struct {
	Repo   repository.TaskRepositoryInterface
	Runner Runner
	Log    *logger.Logger
	Now    func() time.Time
	// DefaultTimezone applies to tasks created without one. Empty means the process location.
	DefaultTimezone string
	// DefaultDelay gives the inter-send delay for tasks created without one
	DefaultDelay func(model.Channel) time.Duration
	// Parser reads cron expressions. Nil means the standard five-field syntax.
	Parser cron.ScheduleParser

	mu      sync.Mutex
	tasks   map[string]*model.ScheduledTask
	armed   map[string]cron.EntryID
	running map[string]bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func New(repo repository.TaskRepositoryInterface, runner Runner, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	cl := log.Cron()
	return &Scheduler{
		Repo:    repo,
		Runner:  runner,
		Log:     log,
		Now:     time.Now,
		tasks:   make(map[string]*model.ScheduledTask),
		armed:   make(map[string]cron.EntryID),
		running: make(map[string]bool),
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start loads every durable record and arms only the active ones.
func (s *Scheduler) Start() error {
	tasks, err := s.Repo.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	armed := 0
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.Status != model.TaskActive {
			continue
		}
		if err := s.arm(t); err != nil {
			s.Log.Error().Err(err).Str("task_id", t.ID).Msg("failed to arm task")
			t.LastError = err.Error()
			continue
		}
		t.NextRun = s.nextRun(t, now)
		armed++
	}
	s.cron.Start()
	s.started = true

	s.Log.Info().Int("loaded", len(tasks)).Int("armed", armed).Msg("scheduler started")
	return nil
}

// Stop halts every trigger, cancels in-flight campaigns and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, entry := range s.armed {
		s.cron.Remove(entry)
		delete(s.armed, id)
	}
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.Log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) location(t *model.ScheduledTask) string {
	if t.Timezone != "" {
		return t.Timezone
	}
	return s.DefaultTimezone
}

func (s *Scheduler) parse(t *model.ScheduledTask) (cron.Schedule, error) {
	spec := strings.TrimSpace(t.CronExpression)
	if tz := s.location(t); tz != "" {
		spec = "CRON_TZ=" + tz + " " + spec
	}
	if s.Parser != nil {
		return s.Parser.Parse(spec)
	}
	return cron.ParseStandard(spec)
}

func (s *Scheduler) nextRun(t *model.ScheduledTask, from time.Time) *time.Time {
	sched, err := s.parse(t)
	if err != nil {
		return nil
	}
	next := sched.Next(from)
	if next.IsZero() {
		return nil
	}
	return &next
}

// arm registers a cron entry for t. Callers hold s.mu.
func (s *Scheduler) arm(t *model.ScheduledTask) error {
	if _, ok := s.armed[t.ID]; ok {
		return nil
	}
	sched, err := s.parse(t)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", t.CronExpression, err)
	}
	id := t.ID
	s.armed[id] = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
	return nil
}

// disarm removes the cron entry for id. Callers hold s.mu.
func (s *Scheduler) disarm(id string) {
	if entry, ok := s.armed[id]; ok {
		s.cron.Remove(entry)
		delete(s.armed, id)
	}
}

func (s *Scheduler) generateID() string {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		id := fmt.Sprintf("task_%d_%s", s.now().UnixMilli(), suffix)
		if _, taken := s.tasks[id]; !taken {
			return id
		}
	}
}

func (s *Scheduler) validate(in TaskInput) []string {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !in.Type.Valid() {
		problems = append(problems, "type must be email or sms")
	}
	if strings.TrimSpace(in.CronExpression) == "" {
		problems = append(problems, "cronExpression is required")
	}
	if len(in.Contacts) == 0 {
		problems = append(problems, "at least one contact is required")
	}
	if in.Template == "" && strings.TrimSpace(in.Message) == "" {
		problems = append(problems, "either template or message is required")
	}
	if in.CustomizationLevel != "" && !in.CustomizationLevel.Valid() {
		problems = append(problems, "unknown customization level: "+string(in.CustomizationLevel))
	}
	if in.DelayMs != nil && *in.DelayMs < 0 {
		problems = append(problems, "delay must not be negative")
	}
	if in.Timezone != "" {
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			problems = append(problems, "unknown timezone: "+in.Timezone)
		}
	}
	return problems
}

// Create validates and persists a new active task, then arms it.
func (s *Scheduler) Create(in TaskInput) (*model.ScheduledTask, error) {
	if problems := s.validate(in); len(problems) > 0 {
		return nil, appErrors.NewValidation(problems...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task := &model.ScheduledTask{
		ID:                 s.generateID(),
		Type:               in.Type,
		Name:               strings.TrimSpace(in.Name),
		Description:        in.Description,
		CronExpression:     strings.TrimSpace(in.CronExpression),
		Timezone:           in.Timezone,
		Contacts:           in.Contacts,
		Template:           in.Template,
		Message:            in.Message,
		Subject:            in.Subject,
		CustomizationLevel: in.CustomizationLevel,
		AIContext:          in.AIContext,
		Status:             model.TaskActive,
		CreatedAt:          now.UTC(),
	}
	if in.DelayMs != nil {
		task.DelayMs = *in.DelayMs
	} else if s.DefaultDelay != nil {
		task.DelayMs = s.DefaultDelay(in.Type).Milliseconds()
	}
	if _, err := s.parse(task); err != nil {
		return nil, appErrors.NewValidation(fmt.Sprintf("invalid cron expression %q: %v", task.CronExpression, err))
	}
	task.NextRun = s.nextRun(task, now)

	if err := s.Repo.Save(task); err != nil {
		return nil, err
	}
	s.tasks[task.ID] = task
	if err := s.arm(task); err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("task_id", task.ID).
		Str("name", task.Name).
		Str("cron", task.CronExpression).
		Msg("scheduled task created")
	return task.Clone(), nil
}

// Get returns a copy of the task.
func (s *Scheduler) Get(id string) (*model.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, appErrors.NewNotFound("task", id)
	}
	return t.Clone(), nil
}

// List returns summaries of every known task, newest first.
func (s *Scheduler) List() []model.TaskSummary {
	s.mu.Lock()
	out := make([]model.TaskSummary, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone().Summary())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// transition applies one state-machine step under the lock and persists it.
// The in-memory record is restored when persisting fails.
func (s *Scheduler) transition(id, action string, allowed []model.TaskStatus, apply func(t *model.ScheduledTask) error) (*model.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, appErrors.NewNotFound("task", id)
	}
	permitted := false
	for _, st := range allowed {
		if t.Status == st {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, &appErrors.TransitionError{TaskID: id, From: string(t.Status), Action: action}
	}

	before := t.Clone()
	if err := apply(t); err != nil {
		s.restore(before)
		return nil, err
	}
	if err := s.Repo.Save(t); err != nil {
		s.restore(before)
		return nil, err
	}
	s.Log.Info().Str("task_id", id).Str("action", action).Str("status", string(t.Status)).Msg("task status changed")
	return t.Clone(), nil
}

// restore puts back a prior record and its trigger. Callers hold s.mu.
func (s *Scheduler) restore(before *model.ScheduledTask) {
	s.tasks[before.ID] = before
	if before.Status == model.TaskActive {
		if err := s.arm(before); err != nil {
			s.Log.Error().Err(err).Str("task_id", before.ID).Msg("failed to re-arm task")
		}
	} else {
		s.disarm(before.ID)
	}
}

// Pause stops the trigger of an active task. nextRun is left as it was.
func (s *Scheduler) Pause(id string) (*model.ScheduledTask, error) {
	return s.transition(id, "pause", []model.TaskStatus{model.TaskActive}, func(t *model.ScheduledTask) error {
		s.disarm(t.ID)
		t.Status = model.TaskPaused
		return nil
	})
}

// Resume re-arms a paused task and recomputes nextRun from now.
func (s *Scheduler) Resume(id string) (*model.ScheduledTask, error) {
	return s.transition(id, "resume", []model.TaskStatus{model.TaskPaused}, func(t *model.ScheduledTask) error {
		t.Status = model.TaskActive
		if err := s.arm(t); err != nil {
			return err
		}
		t.NextRun = s.nextRun(t, s.now())
		return nil
	})
}

// Cancel permanently stops a task. The record is kept.
func (s *Scheduler) Cancel(id string) (*model.ScheduledTask, error) {
	return s.transition(id, "cancel", []model.TaskStatus{model.TaskActive, model.TaskPaused}, func(t *model.ScheduledTask) error {
		s.disarm(t.ID)
		t.Status = model.TaskCancelled
		t.NextRun = nil
		return nil
	})
}

// Purge cancels a task if needed and removes its durable record.
func (s *Scheduler) Purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return appErrors.NewNotFound("task", id)
	}
	s.disarm(id)
	if err := s.Repo.Delete(id); err != nil && !appErrors.IsNotFound(err) {
		return err
	}
	delete(s.tasks, id)
	s.Log.Info().Str("task_id", id).Msg("task purged")
	return nil
}

// RunNow executes a task immediately, outside its schedule, and records the outcome.
// A task whose campaign is already in progress is rejected rather than run twice.
func (s *Scheduler) RunNow(id string) (*model.ScheduledTask, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.NewNotFound("task", id)
	}
	if t.Status == model.TaskCancelled {
		s.mu.Unlock()
		return nil, &appErrors.TransitionError{TaskID: id, From: string(t.Status), Action: "run"}
	}
	if s.running[id] {
		s.mu.Unlock()
		return nil, &appErrors.TransitionError{TaskID: id, From: "running", Action: "run"}
	}
	s.running[id] = true
	s.mu.Unlock()

	s.execute(id)
	return s.Get(id)
}

// fire is the trigger callback. A firing that lands while the same task is
// still running is skipped.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.Status != model.TaskActive {
		s.mu.Unlock()
		return
	}
	if s.running[id] {
		s.mu.Unlock()
		s.Log.Warn().Str("task_id", id).Msg("previous run still in progress, skipping firing")
		return
	}
	s.running[id] = true
	s.mu.Unlock()

	s.execute(id)
}

// execute runs the campaign for a task and records lastRun, lastResult or lastError,
// and nextRun. Failures are recorded on the task and never change its status.
// Callers mark id as running; execute clears the mark when it returns.
func (s *Scheduler) execute(id string) {
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	snapshot := t.Clone()
	s.mu.Unlock()

	started := s.now().UTC()
	log := s.Log.With().Str("task_id", id).Str("name", snapshot.Name).Logger()
	log.Info().Msg("executing scheduled task")

	res, err := s.runSafely(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok = s.tasks[id]
	if !ok {
		return
	}
	t.LastRun = &started
	if err != nil {
		t.LastError = err.Error()
		log.Error().Err(err).Msg("scheduled task failed")
	} else {
		t.LastResult = res
		t.LastError = ""
		log.Info().Int("successful", res.Successful).Int("failed", res.Failed).Msg("scheduled task completed")
	}
	if t.Status == model.TaskCancelled {
		t.NextRun = nil
	} else {
		t.NextRun = s.nextRun(t, s.now())
	}
	if err := s.Repo.Save(t); err != nil {
		log.Error().Err(err).Msg("failed to persist task run")
	}
}

func (s *Scheduler) runSafely(t *model.ScheduledTask) (res *model.CampaignResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("campaign panicked: %v", r)
		}
	}()
	return s.Runner.Run(s.ctx, t.Contacts, service.RunOptions{
		Channel:   t.Type,
		Subject:   t.Subject,
		Template:  t.Template,
		Message:   t.Message,
		Delay:     t.Delay(),
		Level:     t.CustomizationLevel,
		AIContext: t.AIContext,
	})
}

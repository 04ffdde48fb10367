package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []service.RunOptions
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, contacts []model.Contact, opts service.RunOptions) (*model.CampaignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &model.CampaignResult{Channel: opts.Channel, Successful: len(contacts), Errors: []model.RecipientError{}}, nil
}

// blockingRunner holds every run whose subject matches block until release is closed.
type blockingRunner struct {
	block   string
	started chan string
	release chan struct{}

	mu       sync.Mutex
	calls    int
	inFlight int
	maxSeen  int
}

func newBlockingRunner(block string) *blockingRunner {
	return &blockingRunner{block: block, started: make(chan string, 16), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context, contacts []model.Contact, opts service.RunOptions) (*model.CampaignResult, error) {
	b.mu.Lock()
	b.calls++
	b.inFlight++
	if b.inFlight > b.maxSeen {
		b.maxSeen = b.inFlight
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	b.started <- opts.Subject
	if opts.Subject == b.block {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &model.CampaignResult{Channel: opts.Channel, Successful: len(contacts), Errors: []model.RecipientError{}}, nil
}

func (b *blockingRunner) stats() (calls, maxSeen int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls, b.maxSeen
}

func waitStarted(t *testing.T, b *blockingRunner, subject string) {
	t.Helper()
	select {
	case got := <-b.started:
		require.Equal(t, subject, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("run for %q never started", subject)
	}
}

type runOutcome struct {
	task *model.ScheduledTask
	err  error
}

func runInBackground(s *Scheduler, id string) <-chan runOutcome {
	done := make(chan runOutcome, 1)
	go func() {
		task, err := s.RunNow(id)
		done <- runOutcome{task, err}
	}()
	return done
}

func newTestScheduler(t *testing.T, path string, runner Runner) *Scheduler {
	t.Helper()
	s := New(repository.NewTaskRepository(path), runner, nil)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func validInput() TaskInput {
	return TaskInput{
		Type:           model.ChannelEmail,
		Name:           "Morning newsletter",
		CronExpression: "0 9 * * *",
		Contacts:       []model.Contact{model.NewContact(map[string]string{"name": "John Doe", "email": "john@example.com"})},
		Message:        "Hello {{firstName}}",
		Subject:        "News",
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCreate_ComputesNextRunWithinADay(t *testing.T) {
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), &fakeRunner{})

	before := time.Now()
	task, err := s.Create(validInput())
	require.NoError(t, err)

	assert.Equal(t, model.TaskActive, task.Status)
	assert.Regexp(t, `^task_\d+_[0-9a-f]{9}$`, task.ID)
	require.NotNil(t, task.NextRun)
	assert.True(t, task.NextRun.After(before), "nextRun %v should be after %v", task.NextRun, before)
	assert.True(t, task.NextRun.Before(before.Add(24*time.Hour)), "nextRun %v should be within 24h", task.NextRun)
}

func TestCreate_GeneratesUniqueIDs(t *testing.T) {
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), &fakeRunner{})

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		task, err := s.Create(validInput())
		require.NoError(t, err)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), &fakeRunner{})

	tests := []struct {
		name   string
		mutate func(in *TaskInput)
	}{
		{"missing name", func(in *TaskInput) { in.Name = " " }},
		{"bad type", func(in *TaskInput) { in.Type = "fax" }},
		{"bad cron", func(in *TaskInput) { in.CronExpression = "every tuesday" }},
		{"no contacts", func(in *TaskInput) { in.Contacts = nil }},
		{"no body", func(in *TaskInput) { in.Message = "" }},
		{"bad timezone", func(in *TaskInput) { in.Timezone = "Mars/Olympus" }},
		{"bad level", func(in *TaskInput) { in.CustomizationLevel = "extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := s.Create(in)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, s.List())
}

func TestStateMachine(t *testing.T) {
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), &fakeRunner{})

	task, err := s.Create(validInput())
	require.NoError(t, err)

	paused, err := s.Pause(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPaused, paused.Status)
	assert.Equal(t, task.NextRun, paused.NextRun)

	_, err = s.Pause(task.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	resumed, err := s.Resume(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskActive, resumed.Status)
	require.NotNil(t, resumed.NextRun)

	_, err = s.Pause(task.ID)
	require.NoError(t, err)

	cancelled, err := s.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextRun)

	_, err = s.Resume(task.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = s.Cancel(task.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = s.Pause("task_missing")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestStart_ArmsOnlyActiveTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	first := New(repository.NewTaskRepository(path), &fakeRunner{}, nil)
	require.NoError(t, first.Start())
	active, err := first.Create(validInput())
	require.NoError(t, err)
	paused, err := first.Create(validInput())
	require.NoError(t, err)
	_, err = first.Pause(paused.ID)
	require.NoError(t, err)
	cancelled, err := first.Create(validInput())
	require.NoError(t, err)
	_, err = first.Cancel(cancelled.ID)
	require.NoError(t, err)
	first.Stop()

	second := newTestScheduler(t, path, &fakeRunner{})
	assert.Len(t, second.List(), 3)

	second.mu.Lock()
	_, activeArmed := second.armed[active.ID]
	_, pausedArmed := second.armed[paused.ID]
	_, cancelledArmed := second.armed[cancelled.ID]
	second.mu.Unlock()

	assert.True(t, activeArmed)
	assert.False(t, pausedArmed)
	assert.False(t, cancelledArmed)

	got, err := second.Get(paused.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPaused, got.Status)
}

func TestExecute_RecordsResultAndError(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), runner)

	task, err := s.Create(validInput())
	require.NoError(t, err)

	got, err := s.RunNow(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	require.NotNil(t, got.LastResult)
	assert.Equal(t, 1, got.LastResult.Successful)
	assert.Empty(t, got.LastError)
	assert.Equal(t, model.TaskActive, got.Status)

	runner.mu.Lock()
	runner.err = errors.New("template missing")
	runner.mu.Unlock()

	got, err = s.RunNow(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "template missing", got.LastError)
	require.NotNil(t, got.LastResult, "previous result is kept")
	assert.Equal(t, 1, got.LastResult.Successful)
	assert.Equal(t, model.TaskActive, got.Status)

	runner.mu.Lock()
	require.Len(t, runner.calls, 2)
	assert.Equal(t, model.ChannelEmail, runner.calls[0].Channel)
	assert.Equal(t, "Hello {{firstName}}", runner.calls[0].Message)
	runner.mu.Unlock()
}

func TestFire_SkipsInactiveTasks(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), runner)

	task, err := s.Create(validInput())
	require.NoError(t, err)
	_, err = s.Pause(task.ID)
	require.NoError(t, err)

	s.fire(task.ID)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.calls)
}

func TestPurge_RemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := newTestScheduler(t, path, &fakeRunner{})

	task, err := s.Create(validInput())
	require.NoError(t, err)
	require.NoError(t, s.Purge(task.ID))

	_, err = s.Get(task.ID)
	assert.True(t, appErrors.IsNotFound(err))

	stored, err := repository.NewTaskRepository(path).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.True(t, appErrors.IsNotFound(s.Purge(task.ID)))
}

func TestCreate_AppliesDefaults(t *testing.T) {
	s := New(repository.NewTaskRepository(filepath.Join(t.TempDir(), "tasks.json")), &fakeRunner{}, nil)
	s.DefaultTimezone = "UTC"
	s.DefaultDelay = func(ch model.Channel) time.Duration {
		if ch == model.ChannelSMS {
			return 2 * time.Second
		}
		return time.Second
	}
	require.NoError(t, s.Start())
	defer s.Stop()

	in := validInput()
	in.Type = model.ChannelSMS
	task, err := s.Create(in)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), task.DelayMs)

	zero := int64(0)
	in.DelayMs = &zero
	task, err = s.Create(in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), task.DelayMs)
	require.NotNil(t, task.NextRun)
	assert.Equal(t, 9, task.NextRun.In(time.UTC).Hour())
}

func TestCommonSchedules_Parse(t *testing.T) {
	s := New(repository.NewTaskRepository(filepath.Join(t.TempDir(), "tasks.json")), &fakeRunner{}, nil)
	defer s.Stop()
	for _, sc := range CommonSchedules() {
		_, err := s.parse(&model.ScheduledTask{CronExpression: sc.Expression})
		assert.NoError(t, err, sc.Label)
	}
}

func TestRunNow_RejectsOverlappingRun(t *testing.T) {
	runner := newBlockingRunner("News")
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), runner)

	task, err := s.Create(validInput())
	require.NoError(t, err)

	first := runInBackground(s, task.ID)
	waitStarted(t, runner, "News")

	_, err = s.RunNow(task.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	// a timer firing during the run is dropped
	s.fire(task.ID)

	close(runner.release)
	out := <-first
	require.NoError(t, out.err)
	require.NotNil(t, out.task.LastResult)

	calls, maxSeen := runner.stats()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, maxSeen)

	_, err = s.RunNow(task.ID)
	require.NoError(t, err, "task can run again once the previous run finished")
	calls, _ = runner.stats()
	assert.Equal(t, 2, calls)
}

func TestCancel_DuringRunKeepsResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	runner := newBlockingRunner("News")
	s := newTestScheduler(t, path, runner)

	task, err := s.Create(validInput())
	require.NoError(t, err)

	running := runInBackground(s, task.ID)
	waitStarted(t, runner, "News")

	cancelled, err := s.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, cancelled.Status)

	close(runner.release)
	out := <-running
	require.NoError(t, out.err)

	got, err := s.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, got.Status)
	assert.Nil(t, got.NextRun)
	require.NotNil(t, got.LastRun)
	require.NotNil(t, got.LastResult)
	assert.Equal(t, 1, got.LastResult.Successful)

	stored, err := repository.NewTaskRepository(path).LoadAll()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.TaskCancelled, stored[0].Status)
	assert.Nil(t, stored[0].NextRun)
	assert.NotNil(t, stored[0].LastResult)
}

func TestRun_SlowTaskDoesNotDelayOthers(t *testing.T) {
	runner := newBlockingRunner("slow")
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"), runner)

	in := validInput()
	in.Subject = "slow"
	slow, err := s.Create(in)
	require.NoError(t, err)
	fast, err := s.Create(validInput())
	require.NoError(t, err)

	slowRun := runInBackground(s, slow.ID)
	waitStarted(t, runner, "slow")

	fired := make(chan struct{})
	go func() {
		s.fire(fast.ID)
		close(fired)
	}()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("firing of an unrelated task waited on the slow campaign")
	}
	waitStarted(t, runner, "News")

	got, err := s.Get(fast.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastResult)

	got, err = s.Get(slow.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastRun, "slow run has not finished yet")

	close(runner.release)
	require.NoError(t, (<-slowRun).err)
}

func TestArm_EntryMatchesNextRun(t *testing.T) {
	s := New(repository.NewTaskRepository(filepath.Join(t.TempDir(), "tasks.json")), &fakeRunner{}, nil)
	s.DefaultTimezone = "UTC"
	require.NoError(t, s.Start())
	defer s.Stop()

	task, err := s.Create(validInput())
	require.NoError(t, err)
	require.NotNil(t, task.NextRun)

	s.mu.Lock()
	entryID, ok := s.armed[task.ID]
	s.mu.Unlock()
	require.True(t, ok)
	assert.True(t, s.cron.Entry(entryID).Next.Equal(*task.NextRun), "entry next %v, task nextRun %v", s.cron.Entry(entryID).Next, task.NextRun)
}

func TestTrigger_FiresOnClock(t *testing.T) {
	runner := &fakeRunner{}
	s := New(repository.NewTaskRepository(filepath.Join(t.TempDir(), "tasks.json")), runner, nil)
	s.Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	require.NoError(t, s.Start())
	defer s.Stop()

	in := validInput()
	in.CronExpression = "* * * * * *"
	task, err := s.Create(in)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := s.Get(task.ID)
		return err == nil && got.LastResult != nil
	}, 5*time.Second, 50*time.Millisecond)

	got, err := s.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskActive, got.Status)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.After(*got.LastRun))
}

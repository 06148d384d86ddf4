package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/internal/event"
	"momentum/internal/model"
	"momentum/internal/repository"
)

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	c.at = at
	c.mu.Unlock()
}

func at(date, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

type harness struct {
	db    *gorm.DB
	bus   *event.Bus
	clock *testClock
	user  *model.User

	users      *repository.UserRepository
	progressDB *repository.ProgressRepository

	tasks      *TaskService
	progress   *ProgressService
	milestones *MilestoneService
	analytics  *AnalyticsService
	periodic   *PeriodicService
	backup     *BackupService
	categories *CategoryService
	reminders  *ReminderService
}

func openDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newHarness(t *testing.T, now time.Time) *harness {
	return newHarnessNamed(t, t.Name(), now, 90)
}

func newHarnessNamed(t *testing.T, name string, now time.Time, horizonDays int) *harness {
	t.Helper()
	db := openDB(t, name)
	log := zap.NewNop()
	clock := &testClock{at: now}
	settings := Settings{Clock: clock, Location: time.UTC, HorizonDays: horizonDays}
	bus := event.NewBus()

	users := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	occRepo := repository.NewOccurrenceRepository(db)
	catRepo := repository.NewCategoryRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)

	h := &harness{db: db, bus: bus, clock: clock, users: users, progressDB: progressRepo}
	h.tasks = NewTaskService(taskRepo, occRepo, catRepo, users, bus, settings, log)
	h.milestones = NewMilestoneService(milestoneRepo, progressRepo, bus, settings, log)
	h.progress = NewProgressService(occRepo, progressRepo, users, h.milestones, bus, settings, log)
	h.analytics = NewAnalyticsService(h.progress)
	h.periodic = NewPeriodicService(users, progressRepo, h.tasks, h.progress, settings, log)
	h.backup = NewBackupService(repository.NewSnapshotRepository(db), bus, settings, log)
	h.categories = NewCategoryService(catRepo)
	h.reminders = NewReminderService(h.tasks, h.progress, h.categories, settings)

	user, err := users.UpsertFromTelegram(context.Background(), 42, "Ada", "Lovelace", "ada", now)
	require.NoError(t, err)
	h.user = user
	return h
}

// seedDay schedules total one-off tasks on date and completes the first done of them.
func (h *harness) seedDay(t *testing.T, date string, total, done int) []model.Occurrence {
	t.Helper()
	ctx := context.Background()
	var out []model.Occurrence
	for i := 0; i < total; i++ {
		created, err := h.tasks.CreateTask(ctx, h.user.ID, TaskDraft{
			Title:     fmt.Sprintf("task %s #%d", date, i),
			Duration:  30,
			Date:      date,
			StartTime: fmt.Sprintf("%02d:00", 6+i),
		})
		require.NoError(t, err)
		require.Len(t, created.Occurrences, 1)
		occ := created.Occurrences[0]
		if i < done {
			toggled, err := h.tasks.ToggleOccurrence(ctx, h.user.ID, occ.ID)
			require.NoError(t, err)
			occ = *toggled
		}
		out = append(out, occ)
	}
	return out
}

func (h *harness) recalc(t *testing.T, date string) *model.DailySummary {
	t.Helper()
	summary, err := h.progress.RecalculateDailyBadge(context.Background(), h.user.ID, date)
	require.NoError(t, err)
	return summary
}

func (h *harness) streak(t *testing.T) *model.Streak {
	t.Helper()
	st, err := h.progress.GetStreak(context.Background(), h.user.ID)
	require.NoError(t, err)
	return st
}

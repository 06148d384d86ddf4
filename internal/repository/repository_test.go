package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/internal/common"
	"momentum/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, t.Name())
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	user, err := NewUserRepository(db).UpsertFromTelegram(context.Background(), 42, "Ada", "L", "ada", time.Now())
	require.NoError(t, err)
	return user
}

func TestEnsureDirForSQLite_SkipsMemory(t *testing.T) {
	assert.NoError(t, ensureDirForSQLite(":memory:"))
	assert.NoError(t, ensureDirForSQLite("file:x?mode=memory&cache=shared"))

	dir := t.TempDir()
	require.NoError(t, ensureDirForSQLite(dir+"/nested/db.sqlite"))
	assert.DirExists(t, dir+"/nested")
}

func TestUserRepository_UpsertInitializesStreak(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	progress := NewProgressRepository(db)

	joined := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	user, err := users.UpsertFromTelegram(ctx, 7, "Grace", "", "grace", joined)
	require.NoError(t, err)
	assert.Equal(t, 1, user.FreezeTokensPerMonth)

	st, err := progress.FindStreak(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 0, st.FreezeTokens)
	assert.Nil(t, st.LastCompletionDate)
	require.NotNil(t, st.LastTokenRefresh)
	assert.True(t, st.LastTokenRefresh.Equal(joined))

	again, err := users.UpsertFromTelegram(ctx, 7, "Grace", "Hopper", "grace", joined.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	all, err := users.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = users.FindByID(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUserRepository_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	users := NewUserRepository(db)

	require.NoError(t, users.UpdateSettings(ctx, user.ID, "Europe/Berlin", 2, true))
	got, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, 2, got.FreezeTokensPerMonth)
	assert.True(t, got.Use12HourClock)

	assert.ErrorIs(t, users.UpdateSettings(ctx, 999, "", 1, false), common.ErrNotFound)
}

func TestProgressRepository_MissingStreakIsPrecondition(t *testing.T) {
	db := newTestDB(t)
	_, err := NewProgressRepository(db).FindStreak(context.Background(), 12345)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestTaskRepository_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	tasks := NewTaskRepository(db)
	occs := NewOccurrenceRepository(db)

	task := &model.Task{UserID: user.ID, Title: "Run", Duration: 30}
	rule := &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-01", StartTime: "07:00", MaterializedThrough: "2024-01-03"}
	slots := []model.Occurrence{
		{ScheduledDate: "2024-01-01", ScheduledTime: "07:00"},
		{ScheduledDate: "2024-01-02", ScheduledTime: "07:00"},
		{ScheduledDate: "2024-01-03", ScheduledTime: "07:00"},
	}
	require.NoError(t, tasks.CreateWithSchedule(ctx, task, rule, slots))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, model.DefaultTaskColor, task.Color)
	assert.Equal(t, 1, task.Version)

	got, err := tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, "daily", got.Recurrence.Kind)

	require.NoError(t, tasks.Update(ctx, user.ID, task.ID, map[string]interface{}{"title": "Run 5k"}))
	got, err = tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run 5k", got.Title)
	assert.Equal(t, 2, got.Version)

	assert.ErrorIs(t, tasks.Update(ctx, user.ID, "missing", map[string]interface{}{"title": "x"}), common.ErrNotFound)

	list, err := occs.ForRange(ctx, user.ID, "2024-01-01", "2024-01-03")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, tasks.SoftDelete(ctx, user.ID, task.ID, time.Now()))
	_, err = tasks.FindByID(ctx, user.ID, task.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err = occs.ForRange(ctx, user.ID, "2024-01-01", "2024-01-03")
	require.NoError(t, err)
	assert.Empty(t, list)

	var raw model.Task
	require.NoError(t, db.First(&raw, "id = ?", task.ID).Error)
	assert.NotNil(t, raw.DeletedAt, "row kept with deletion marker")

	assert.ErrorIs(t, tasks.SoftDelete(ctx, user.ID, task.ID, time.Now()), common.ErrNotFound)
}

func TestTaskRepository_ExtendScheduleSkipsExisting(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	tasks := NewTaskRepository(db)

	task := &model.Task{UserID: user.ID, Title: "Stretch", Duration: 10}
	rule := &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-01", StartTime: "06:00", MaterializedThrough: "2024-01-01"}
	require.NoError(t, tasks.CreateWithSchedule(ctx, task, rule, []model.Occurrence{{ScheduledDate: "2024-01-01", ScheduledTime: "06:00"}}))

	open, err := tasks.PendingRules(ctx, user.ID, "2024-01-31")
	require.NoError(t, err)
	require.Len(t, open, 1)

	more := []model.Occurrence{
		{ScheduledDate: "2024-01-01", ScheduledTime: "06:00"},
		{ScheduledDate: "2024-01-02", ScheduledTime: "06:00"},
	}
	require.NoError(t, tasks.ExtendSchedule(ctx, &open[0], user.ID, more, "2024-01-02"))

	counts, err := NewOccurrenceRepository(db).DayCounts(ctx, user.ID, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, []DayCount{{"2024-01-01", 1, 0}, {"2024-01-02", 1, 0}}, counts)

	got, err := tasks.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", got.Recurrence.MaterializedThrough)
}

func TestTaskRepository_PendingRules(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	tasks := NewTaskRepository(db)

	end := "2024-02-20"
	schedule := func(title string, rule *model.RecurrenceRule) {
		t.Helper()
		require.NoError(t, tasks.CreateWithSchedule(ctx, &model.Task{UserID: user.ID, Title: title, Duration: 10}, rule, nil))
	}
	schedule("open", &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-01", StartTime: "06:00", MaterializedThrough: "2024-01-10"})
	schedule("open done", &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-01", StartTime: "06:00", MaterializedThrough: "2024-01-31"})
	schedule("bounded", &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-02", EndDate: &end, StartTime: "06:00", MaterializedThrough: "2024-01-31"})
	schedule("bounded done", &model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-01", EndDate: &end, StartTime: "06:00", MaterializedThrough: end})
	schedule("once later", &model.RecurrenceRule{Kind: "once", StartDate: "2024-03-01", StartTime: "06:00", MaterializedThrough: "2024-01-31"})
	schedule("once done", &model.RecurrenceRule{Kind: "once", StartDate: "2024-01-05", StartTime: "06:00", MaterializedThrough: "2024-01-05"})

	rules, err := tasks.PendingRules(ctx, user.ID, "2024-01-31")
	require.NoError(t, err)
	var starts []string
	for _, r := range rules {
		starts = append(starts, r.StartDate+"/"+r.MaterializedThrough)
	}
	assert.Equal(t, []string{"2024-01-01/2024-01-10", "2024-01-02/2024-01-31", "2024-03-01/2024-01-31"}, starts)
}

func TestOccurrenceRepository_ToggleAndCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	tasks := NewTaskRepository(db)
	occs := NewOccurrenceRepository(db)

	for _, title := range []string{"A", "B"} {
		task := &model.Task{UserID: user.ID, Title: title, Duration: 30}
		require.NoError(t, tasks.CreateWithSchedule(ctx, task, nil, []model.Occurrence{{ScheduledDate: "2024-02-01", ScheduledTime: "09:00"}}))
	}

	day, err := occs.ForDate(ctx, user.ID, "2024-02-01")
	require.NoError(t, err)
	require.Len(t, day, 2)
	require.NotNil(t, day[0].Task)

	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, occs.SetCompleted(ctx, &day[0], true, now))

	c, err := occs.CountForDate(ctx, user.ID, "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Total)
	assert.Equal(t, 1, c.Completed)

	got, err := occs.FindByID(ctx, user.ID, day[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, occs.SetCompleted(ctx, got, false, now))
	got, err = occs.FindByID(ctx, user.ID, day[0].ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedAt)

	empty, err := occs.CountForDate(ctx, user.ID, "2024-02-02")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
}

func TestMilestoneRepository_Notifications(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	repo := NewMilestoneRepository(db)

	for i, days := range []int{1, 2} {
		a := &model.MilestoneAchievement{UserID: user.ID, Days: days, Name: "m", AchievedAt: time.Now()}
		n := &model.Notification{
			UserID:    user.ID,
			Type:      model.NotificationMilestone,
			Title:     "t",
			Data:      model.NotificationData{Days: days},
			CreatedAt: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Award(ctx, a, n))
	}

	list, err := repo.Notifications(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Data.Days, "newest first")

	unread, err := repo.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	require.NoError(t, repo.MarkRead(ctx, user.ID, list[0].ID))
	unread, _ = repo.UnreadCount(ctx, user.ID)
	assert.EqualValues(t, 1, unread)

	n, err := repo.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.DeleteNotification(ctx, user.ID, list[1].ID))
	assert.ErrorIs(t, repo.DeleteNotification(ctx, user.ID, list[1].ID), common.ErrNotFound)
	assert.ErrorIs(t, repo.MarkRead(ctx, user.ID, 999), common.ErrNotFound)

	achievements, err := repo.Achievements(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, achievements, 2)
}

func TestSnapshotRepository_DumpRestore(t *testing.T) {
	ctx := context.Background()
	src := newTestDB(t)
	user := newTestUser(t, src)
	task := &model.Task{UserID: user.ID, Title: "Read", Duration: 20}
	rule := &model.RecurrenceRule{Kind: "specific_days", Days: []string{"Monday"}, StartDate: "2024-01-01", StartTime: "20:00"}
	require.NoError(t, NewTaskRepository(src).CreateWithSchedule(ctx, task, rule, []model.Occurrence{{ScheduledDate: "2024-01-01", ScheduledTime: "20:00"}}))

	snap, err := NewSnapshotRepository(src).Dump(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Users, 1)
	assert.Len(t, snap.Tasks, 1)
	assert.Len(t, snap.Streaks, 1)
	require.Len(t, snap.RecurrenceRules, 1)
	assert.Equal(t, []string{"Monday"}, snap.RecurrenceRules[0].Days)

	dst := openTestDB(t, t.Name()+"_restore")
	// pre-existing rows are replaced, not merged
	_, err = NewUserRepository(dst).UpsertFromTelegram(ctx, 99, "Other", "", "", time.Now())
	require.NoError(t, err)

	require.NoError(t, NewSnapshotRepository(dst).Restore(ctx, snap))
	back, err := NewSnapshotRepository(dst).Dump(ctx)
	require.NoError(t, err)
	require.Len(t, back.Users, 1)
	assert.Equal(t, int64(42), back.Users[0].TelegramID)
	assert.Len(t, back.Occurrences, 1)
	assert.Equal(t, task.ID, back.Tasks[0].ID)
}

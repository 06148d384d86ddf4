package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"momentum/internal/common"
	"momentum/internal/datex"
	"momentum/internal/event"
	"momentum/internal/metrics"
	"momentum/internal/model"
	"momentum/internal/overlap"
	"momentum/internal/recurrence"
	"momentum/internal/repository"
)

// TaskDraft represents data required to create a task.
// A nil Recurrence schedules a single occurrence on Date.
type TaskDraft struct {
	Title       string
	Description string
	Color       string
	Duration    int
	Category    string
	Date        string
	StartTime   string
	Recurrence  *RecurrenceDraft
}

type RecurrenceDraft struct {
	Kind       string
	Days       []string
	StartDate  string
	EndDate    string
	Exceptions []string
}

// TaskPatch holds optional field changes; nil fields are left alone.
type TaskPatch struct {
	Title       *string
	Description *string
	Color       *string
	Category    *string
	Duration    *int
}

// Conflict is an existing occurrence overlapping a new one on Date.
type Conflict struct {
	Date string
	overlap.Scheduled
}

type CreatedTask struct {
	Task        *model.Task
	Occurrences []model.Occurrence
	Conflicts   []Conflict
}

// TaskService wraps task and occurrence business logic.
type TaskService struct {
	taskRepo       *repository.TaskRepository
	occurrenceRepo *repository.OccurrenceRepository
	categoryRepo   *repository.CategoryRepository
	userRepo       *repository.UserRepository
	bus            *event.Bus
	settings       Settings
	log            *zap.Logger
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	occurrenceRepo *repository.OccurrenceRepository,
	categoryRepo *repository.CategoryRepository,
	userRepo *repository.UserRepository,
	bus *event.Bus,
	settings Settings,
	log *zap.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:       taskRepo,
		occurrenceRepo: occurrenceRepo,
		categoryRepo:   categoryRepo,
		userRepo:       userRepo,
		bus:            bus,
		settings:       settings.withDefaults(),
		log:            log,
	}
}

// CreateTask persists the task and materializes its occurrences up to the
// horizon. Overlaps with other tasks are reported, never blocking.
func (s *TaskService) CreateTask(ctx context.Context, userID uint, draft TaskDraft) (*CreatedTask, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.settings.now(user.Location(s.settings.Location))
	today := datex.FormatDate(now)

	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrInvalidTask)
	}
	if draft.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", common.ErrInvalidRule)
	}
	if _, err := datex.TimeToMinutes(draft.StartTime); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}
	date := draft.Date
	if date == "" {
		date = today
	}
	if _, err := datex.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}

	var (
		rule  *model.RecurrenceRule
		slots []recurrence.Slot
	)
	if draft.Recurrence == nil {
		slots = []recurrence.Slot{{Date: date, Time: draft.StartTime}}
	} else {
		rule, err = buildRule(draft.Recurrence, date, draft.StartTime)
		if err != nil {
			return nil, err
		}
		through := rule.Rule().Through(recurrence.HorizonEnd(now, s.settings.HorizonDays))
		slots, err = recurrence.Expand(rule.Rule(), draft.StartTime, through)
		if err != nil {
			return nil, err
		}
		rule.MaterializedThrough = through
	}

	var categoryID *uint
	if name := strings.TrimSpace(draft.Category); name != "" {
		category, err := s.categoryRepo.GetOrCreate(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		categoryID = &category.ID
	}

	conflicts, err := s.conflictsFor(ctx, userID, slots, draft.Duration)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:      userID,
		CategoryID:  categoryID,
		Title:       title,
		Description: strings.TrimSpace(draft.Description),
		Color:       draft.Color,
		Duration:    draft.Duration,
	}
	occurrences := make([]model.Occurrence, 0, len(slots))
	for _, slot := range slots {
		occurrences = append(occurrences, model.Occurrence{
			ScheduledDate: slot.Date,
			ScheduledTime: slot.Time,
		})
	}

	if err := s.taskRepo.CreateWithSchedule(ctx, &task, rule, occurrences); err != nil {
		return nil, err
	}
	metrics.IncrementMaterialized("create", len(occurrences))
	s.bus.Publish(event.Event{Type: event.TasksChanged, UserID: userID})
	s.log.Info("task created",
		zap.Uint("user_id", userID),
		zap.String("task_id", task.ID),
		zap.Int("occurrences", len(occurrences)),
		zap.Int("conflicts", len(conflicts)),
	)

	return &CreatedTask{Task: &task, Occurrences: occurrences, Conflicts: conflicts}, nil
}

func buildRule(draft *RecurrenceDraft, date, startTime string) (*model.RecurrenceRule, error) {
	kind, err := recurrence.ParseKind(draft.Kind)
	if err != nil {
		return nil, err
	}
	start := draft.StartDate
	if start == "" {
		start = date
	}
	rule := &model.RecurrenceRule{
		Kind:       string(kind),
		Days:       draft.Days,
		StartDate:  start,
		Exceptions: draft.Exceptions,
		StartTime:  startTime,
	}
	if draft.EndDate != "" {
		end := draft.EndDate
		rule.EndDate = &end
	}
	if err := rule.Rule().Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// conflictsFor checks every slot against the occurrences already stored on its date.
func (s *TaskService) conflictsFor(ctx context.Context, userID uint, slots []recurrence.Slot, duration int) ([]Conflict, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	existing, err := s.occurrenceRepo.ForRange(ctx, userID, slots[0].Date, slots[len(slots)-1].Date)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string][]overlap.Scheduled)
	for _, occ := range existing {
		byDate[occ.ScheduledDate] = append(byDate[occ.ScheduledDate], scheduledOf(occ))
	}

	var out []Conflict
	for _, slot := range slots {
		if len(byDate[slot.Date]) == 0 {
			continue
		}
		span, err := overlap.NewSpan(slot.Time, duration)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
		}
		for _, hit := range overlap.Find(span, byDate[slot.Date], "") {
			out = append(out, Conflict{Date: slot.Date, Scheduled: hit})
		}
	}
	return out, nil
}

func scheduledOf(occ model.Occurrence) overlap.Scheduled {
	sc := overlap.Scheduled{
		OccurrenceID: occ.ID,
		TaskID:       occ.TaskID,
		Time:         occ.ScheduledTime,
	}
	if occ.Task != nil {
		sc.Title = occ.Task.Title
		sc.Duration = occ.Task.Duration
	}
	return sc
}

// FindOverlaps lists occurrences on date that intersect [startTime, startTime+duration),
// ignoring those of excludeTaskID.
func (s *TaskService) FindOverlaps(ctx context.Context, userID uint, date, startTime string, duration int, excludeTaskID string) ([]overlap.Scheduled, error) {
	span, err := overlap.NewSpan(startTime, duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}
	occs, err := s.occurrenceRepo.ForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	existing := make([]overlap.Scheduled, 0, len(occs))
	for _, occ := range occs {
		existing = append(existing, scheduledOf(occ))
	}
	return overlap.Find(span, existing, excludeTaskID), nil
}

func (s *TaskService) UpdateTask(ctx context.Context, userID uint, taskID string, patch TaskPatch) error {
	changes := make(map[string]interface{})
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return fmt.Errorf("%w: title is required", common.ErrInvalidTask)
		}
		changes["title"] = title
	}
	if patch.Description != nil {
		changes["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		color := *patch.Color
		if color == "" {
			color = model.DefaultTaskColor
		}
		changes["color"] = color
	}
	if patch.Duration != nil {
		if *patch.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive", common.ErrInvalidRule)
		}
		changes["duration"] = *patch.Duration
	}
	if patch.Category != nil {
		if name := strings.TrimSpace(*patch.Category); name == "" {
			changes["category_id"] = nil
		} else {
			category, err := s.categoryRepo.GetOrCreate(ctx, userID, name)
			if err != nil {
				return err
			}
			changes["category_id"] = category.ID
		}
	}

	if err := s.taskRepo.Update(ctx, userID, taskID, changes); err != nil {
		return err
	}
	s.bus.Publish(event.Event{Type: event.TasksChanged, UserID: userID})
	return nil
}

// DeleteTask soft-deletes the task and removes its occurrences.
func (s *TaskService) DeleteTask(ctx context.Context, userID uint, taskID string) error {
	if err := s.taskRepo.SoftDelete(ctx, userID, taskID, s.settings.Clock.Now()); err != nil {
		return err
	}
	s.log.Info("task deleted", zap.Uint("user_id", userID), zap.String("task_id", taskID))
	s.bus.Publish(event.Event{Type: event.TasksChanged, UserID: userID})
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.ListActive(ctx, userID)
}

// ToggleOccurrence flips completion of one occurrence. Callers recalculate
// the day's badge afterwards.
func (s *TaskService) ToggleOccurrence(ctx context.Context, userID uint, occurrenceID string) (*model.Occurrence, error) {
	occ, err := s.occurrenceRepo.FindByID(ctx, userID, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := s.occurrenceRepo.SetCompleted(ctx, occ, !occ.Completed, s.settings.Clock.Now()); err != nil {
		return nil, err
	}
	metrics.IncrementToggle(occ.Completed)
	s.bus.Publish(event.Event{Type: event.ProgressChanged, UserID: userID, Date: occ.ScheduledDate})
	return occ, nil
}

func (s *TaskService) OccurrencesForDate(ctx context.Context, userID uint, date string) ([]model.Occurrence, error) {
	return s.occurrenceRepo.ForDate(ctx, userID, date)
}

func (s *TaskService) OccurrencesForRange(ctx context.Context, userID uint, from, to string) ([]model.Occurrence, error) {
	if from > to {
		return nil, fmt.Errorf("%w: range %s..%s is reversed", common.ErrInvalidRule, from, to)
	}
	return s.occurrenceRepo.ForRange(ctx, userID, from, to)
}

// ExtendHorizons materializes every rule that still has dates left: open-ended
// rules up to the rolling horizon, bounded and one-off rules up to their end.
// Rules already materialized that far are left untouched.
func (s *TaskService) ExtendHorizons(ctx context.Context, userID uint) (int, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	horizon := recurrence.HorizonEnd(s.settings.now(user.Location(s.settings.Location)), s.settings.HorizonDays)

	rules, err := s.taskRepo.PendingRules(ctx, userID, horizon)
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range rules {
		rule := &rules[i]
		through := rule.Rule().Through(horizon)
		if rule.MaterializedThrough >= through {
			continue
		}
		slots, err := recurrence.ExpandAfter(rule.Rule(), rule.StartTime, rule.MaterializedThrough, through)
		if err != nil {
			s.log.Warn("skip rule with invalid shape", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		occurrences := make([]model.Occurrence, 0, len(slots))
		for _, slot := range slots {
			occurrences = append(occurrences, model.Occurrence{ScheduledDate: slot.Date, ScheduledTime: slot.Time})
		}
		if err := s.taskRepo.ExtendSchedule(ctx, rule, userID, occurrences, through); err != nil {
			return added, err
		}
		added += len(occurrences)
	}

	if added > 0 {
		metrics.IncrementMaterialized("extend", added)
		s.bus.Publish(event.Event{Type: event.TasksChanged, UserID: userID})
		s.log.Info("horizon extended", zap.Uint("user_id", userID), zap.Int("occurrences", added), zap.String("through", horizon))
	}
	return added, nil
}

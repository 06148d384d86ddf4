package bot

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"momentum/internal/datex"
	"momentum/internal/recurrence"
	"momentum/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDuration
	stageStartTime
	stageRepeat
	stageDays
	stageDate
	stageEndDate
	stageCategory
)

type conversationState struct {
	stage conversationStage
	kind  recurrence.Kind
	draft service.TaskDraft
}

// step is what the bot says after an accepted answer.
type step struct {
	prompt   string
	keyboard keyboardKind
	done     bool
}

// inputError is shown to the user verbatim; the stage does not advance.
type inputError struct {
	msg      string
	keyboard keyboardKind
}

func (e *inputError) Error() string { return e.msg }

func newConversation() (*conversationState, step) {
	return &conversationState{stage: stageTitle}, step{
		prompt:   "🆕 Creating a new task.\n<b>Step 1:</b> what should it be called?",
		keyboard: keyboardCancel,
	}
}

// apply consumes one answer. today fills in skipped dates.
func (s *conversationState) apply(text, today string) (step, error) {
	text = strings.TrimSpace(text)

	switch s.stage {
	case stageTitle:
		if text == "" {
			return step{}, &inputError{"The title can't be empty.", keyboardCancel}
		}
		s.draft.Title = text
		s.stage = stageDuration
		return step{prompt: "⏱ How long does it take? Minutes, or a duration like <code>1h30m</code>.", keyboard: keyboardCancel}, nil

	case stageDuration:
		minutes, err := parseMinutes(text)
		if err != nil {
			return step{}, &inputError{"Send a positive number of minutes, e.g. <code>45</code>.", keyboardCancel}
		}
		s.draft.Duration = minutes
		s.stage = stageStartTime
		return step{prompt: "🕘 What time does it start? Use <code>HH:MM</code>, e.g. <code>07:30</code>.", keyboard: keyboardCancel}, nil

	case stageStartTime:
		minutes, err := datex.TimeToMinutes(text)
		if err != nil {
			return step{}, &inputError{"I can't read that time. Use <code>HH:MM</code>.", keyboardCancel}
		}
		s.draft.StartTime = datex.MinutesToTime(minutes)
		s.stage = stageRepeat
		return step{prompt: "🔁 How often?", keyboard: keyboardRepeat}, nil

	case stageRepeat:
		kind, ok := parseRepeat(text)
		if !ok {
			return step{}, &inputError{"Pick one of the buttons.", keyboardRepeat}
		}
		s.kind = kind
		if kind == recurrence.SpecificDays || kind == recurrence.Weekly {
			s.stage = stageDays
			return step{prompt: "📆 Which weekdays? e.g. <code>Mon, Wed, Fri</code>", keyboard: keyboardCancel}, nil
		}
		s.stage = stageDate
		return s.datePrompt(), nil

	case stageDays:
		days, err := parseDays(text)
		if err != nil {
			return step{}, &inputError{err.Error(), keyboardCancel}
		}
		s.draft.Recurrence = &service.RecurrenceDraft{Kind: string(s.kind), Days: days}
		s.stage = stageDate
		return s.datePrompt(), nil

	case stageDate:
		date := today
		if !isSkipInput(text) {
			if _, err := datex.ParseDate(text); err != nil {
				return step{}, &inputError{"Use the <code>2025-11-30</code> format or skip.", keyboardSkip}
			}
			date = text
		}
		s.draft.Date = date
		if s.kind == recurrence.Once {
			s.stage = stageCategory
			return step{prompt: "🏷 Pick a category or type your own (or skip).", keyboard: keyboardCategory}, nil
		}
		if s.draft.Recurrence == nil {
			s.draft.Recurrence = &service.RecurrenceDraft{Kind: string(s.kind)}
		}
		s.draft.Recurrence.StartDate = date
		s.stage = stageEndDate
		return step{prompt: "🏁 Last date? Skip to keep it going.", keyboard: keyboardSkip}, nil

	case stageEndDate:
		if !isSkipInput(text) {
			if _, err := datex.ParseDate(text); err != nil {
				return step{}, &inputError{"Use the <code>2025-11-30</code> format or skip.", keyboardSkip}
			}
			s.draft.Recurrence.EndDate = text
		}
		s.stage = stageCategory
		return step{prompt: "🏷 Pick a category or type your own (or skip).", keyboard: keyboardCategory}, nil

	case stageCategory:
		if !isSkipInput(text) {
			s.draft.Category = text
		}
		s.stage = stageNone
		return step{done: true}, nil
	}

	return step{}, errors.New("conversation is over")
}

func (s *conversationState) datePrompt() step {
	if s.kind == recurrence.Once {
		return step{prompt: "📅 Which date? <code>YYYY-MM-DD</code>, or skip for today.", keyboard: keyboardSkip}
	}
	return step{prompt: "📅 Starting when? <code>YYYY-MM-DD</code>, or skip for today.", keyboard: keyboardSkip}
}

func parseMinutes(text string) (int, error) {
	if n, err := strconv.Atoi(text); err == nil {
		if n <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return n, nil
	}
	d, err := time.ParseDuration(strings.ReplaceAll(text, " ", ""))
	if err != nil {
		return 0, err
	}
	if d < time.Minute {
		return 0, errors.New("duration must be at least a minute")
	}
	return int(d.Minutes()), nil
}

func parseRepeat(text string) (recurrence.Kind, bool) {
	switch strings.ToLower(text) {
	case "once":
		return recurrence.Once, true
	case "daily", "every day":
		return recurrence.Daily, true
	case "specific days", "specific_days":
		return recurrence.SpecificDays, true
	case "weekly":
		return recurrence.Weekly, true
	}
	return "", false
}

// parseDays turns "Mon, wed fri" into canonical weekday names.
func parseDays(text string) ([]string, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	seen := make(map[time.Weekday]bool)
	var days []string
	for _, f := range fields {
		d, ok := datex.ParseWeekday(f)
		if !ok {
			return nil, errors.New("I don't know the day \"" + escape(f) + "\".")
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d.String())
		}
	}
	if len(days) == 0 {
		return nil, errors.New("Name at least one weekday.")
	}
	return days, nil
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

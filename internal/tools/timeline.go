package tools

import (
	"sort"
	"time"

	"github.com/antigravity-dev/maestro/internal/workspace"
)

// TimelineDay is one row of a schedule timeline month view.
type TimelineDay struct {
	Date      string                  `json:"date"`
	Label     string                  `json:"label"`
	IsToday   bool                    `json:"is_today"`
	IsPast    bool                    `json:"is_past"`
	IsFuture  bool                    `json:"is_future"`
	WeekStart string                  `json:"week_start"`
	WeekLabel string                  `json:"week_label"`
	Items     []workspace.ScheduleItem `json:"items"`
}

// Timeline is the result of a get_schedule_timeline call.
type Timeline struct {
	MonthStart  string                   `json:"month_start"`
	MonthEnd    string                   `json:"month_end"`
	Days        []TimelineDay            `json:"days"`
	Unscheduled []workspace.ScheduleItem `json:"unscheduled"`
}

const maxUnscheduled = 50

// ScheduleTimeline computes the month view described by the tool surface:
// one row per day in [month_start, month_end] UTC (when includeEmptyDays,
// otherwise only days carrying items), days sorted date desc, items
// within a day preserving their insertion order, and a separately
// returned, capped list of items with no parseable due date.
func ScheduleTimeline(sched workspace.Schedule, monthYYYYMM string, includeEmptyDays bool, now time.Time) (Timeline, error) {
	monthStart, err := time.Parse("2006-01", monthYYYYMM)
	if err != nil {
		return Timeline{}, &InvalidArgument{Field: "month", Reason: "must be YYYY-MM"}
	}
	monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Second)

	byDay := map[string][]workspace.ScheduleItem{}
	var unscheduled []workspace.ScheduleItem

	for _, item := range sched.Items {
		due, err := time.Parse("2006-01-02", item.DueDate)
		if err != nil {
			if len(unscheduled) < maxUnscheduled {
				unscheduled = append(unscheduled, item)
			}
			continue
		}
		due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
		if due.Before(monthStart) || due.After(monthEnd) {
			continue
		}
		key := due.Format("2006-01-02")
		byDay[key] = append(byDay[key], item)
	}

	today := now.UTC()
	todayKey := today.Format("2006-01-02")

	var dayKeys []string
	if includeEmptyDays {
		for d := monthStart; !d.After(monthEnd); d = d.AddDate(0, 0, 1) {
			dayKeys = append(dayKeys, d.Format("2006-01-02"))
		}
	} else {
		for k := range byDay {
			dayKeys = append(dayKeys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dayKeys)))

	days := make([]TimelineDay, 0, len(dayKeys))
	for _, key := range dayKeys {
		d, _ := time.Parse("2006-01-02", key)
		weekStart := mondayOf(d)
		days = append(days, TimelineDay{
			Date:      key,
			Label:     d.Format("Mon Jan 2"),
			IsToday:   key == todayKey,
			IsPast:    key < todayKey,
			IsFuture:  key > todayKey,
			WeekStart: weekStart.Format("2006-01-02"),
			WeekLabel: weekStart.Format("Jan 2") + " week",
			Items:     byDay[key],
		})
	}

	return Timeline{
		MonthStart:  monthStart.Format("2006-01-02"),
		MonthEnd:    monthEnd.Format("2006-01-02"),
		Days:        days,
		Unscheduled: unscheduled,
	}, nil
}

func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

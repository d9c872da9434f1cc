package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/emersion/go-ical"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	calc := recurrence.NewCalculator(
		recurrence.WithLogger(logger),
		recurrence.WithConfig(recurrence.DefaultConfig),
	)
	defer calc.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	todos := setupToDos(now)
	for _, todo := range todos {
		summary := todo.Props.Get(ical.PropSummary).Value
		occ, err := calc.NextForComponent(ctx, todo, now)
		if err != nil {
			log.Printf("%s: %v", summary, err)
			continue
		}
		if !occ.Found {
			fmt.Printf("%-20s no further occurrence (%s)\n", summary, occ.Reason)
			continue
		}
		fmt.Printf("%-20s next due %s\n", summary, occ.Date.Format(time.RFC1123))
	}

	ics, err := recurrence.EncodeCalendar(todos...)
	if err != nil {
		log.Fatalf("Failed to encode calendar: %v", err)
	}
	fmt.Println()
	fmt.Print(ics)
}

// setupToDos creates a few recurring tasks anchored around now
func setupToDos(now time.Time) []*ical.Component {
	specs := []struct {
		summary string
		due     time.Time
		rule    recurrence.Rule
	}{
		{"Water plants", now.AddDate(0, 0, -10), recurrence.Rule{Frequency: recurrence.Daily, Interval: 3}},
		{"Team sync", now.AddDate(0, 0, -30), recurrence.Rule{Frequency: recurrence.Weekly, Interval: 1, ByWeekDay: []int{1, 4}}},
		{"Pay rent", now.AddDate(0, -2, 0), recurrence.Rule{Frequency: recurrence.Monthly, Interval: 1, ByMonthDay: []int{1}}},
		{"Trial period", now.AddDate(0, 0, -20), recurrence.Rule{Frequency: recurrence.Daily, Interval: 1, Occurrences: intPtr(7)}},
	}

	var todos []*ical.Component
	for _, s := range specs {
		todo, err := recurrence.NewToDo(s.summary, s.due, s.rule)
		if err != nil {
			log.Fatalf("Failed to create %q: %v", s.summary, err)
		}
		todos = append(todos, todo)
	}
	return todos
}

func intPtr(i int) *int { return &i }

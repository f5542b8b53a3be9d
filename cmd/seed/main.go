// Command seed fills the database with realistic demo data: a couple of
// training templates and a batch of completed sessions whose actual
// timings drift according to trainer personality and per-day variance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ontrak/internal/config"
	"example.com/ontrak/internal/domain"
	persistence "example.com/ontrak/internal/persistence/postgres"
)

const (
	workdayStart       = 9 * 60     // 09:00
	workdayEnd         = 17*60 + 30 // 17:30
	breakMinutes       = 5
	minActivityMinutes = 30
	maxActivityMinutes = 120
)

// personality maps a trainer archetype to its start-time variance range
// in minutes.
var personalities = map[string][2]int{
	"Early Bird":     {-10, 0},
	"Punctual":       {-5, 5},
	"Rusher":         {-5, 10},
	"Relaxed":        {0, 15},
	"Procrastinator": {5, 20},
	"Chaotic":        {-15, 15},
}

// dayVariance shifts a whole day early or late; uncovered days fall back
// to (-5, 5).
var dayVariance = map[int][2]int{
	1: {-5, 5}, 2: {-15, -5}, 3: {5, 15}, 4: {-10, 0}, 5: {0, 10},
	6: {-20, -10}, 7: {10, 20}, 8: {-5, 5}, 9: {5, 15}, 10: {-15, -5},
	11: {0, 10}, 12: {-10, 0}, 13: {5, 15}, 14: {-5, 5}, 15: {-15, -5},
}

var activityCatalog = []struct {
	name        string
	description string
}{
	{"Live Chat Handling", "Learn to manage customer conversations effectively in a chat environment."},
	{"Multi-Chat Management", "Master handling multiple customer chats simultaneously."},
	{"Call Handling Basics", "Master the fundamentals of professional call handling."},
	{"Voice Modulation", "Learn proper voice control and tone."},
	{"Typing Speed Training", "Improve typing efficiency and accuracy."},
	{"Shortcut Management", "Learn essential keyboard shortcuts."},
	{"Phone System Training", "Understanding the call center system."},
	{"Call Transfer Protocol", "Proper procedures for transferring calls."},
	{"Written Communication", "Enhance written communication skills."},
	{"Active Listening", "Developing active listening skills."},
	{"Escalation Process", "Understanding when and how to escalate conversations."},
	{"Queue Management", "Managing customers in queue effectively."},
	{"Response Scripts", "Using response scripts appropriately."},
}

func main() {
	sessionsPerTemplate := flag.Int("sessions", 5, "completed sessions to create per template and personality")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	templates := []struct {
		name string
		days int
	}{
		{"Chat Support Training", 10},
		{"Call Center Training", 15},
	}

	for _, spec := range templates {
		tpl, activities := buildTemplate(rng, spec.name, spec.days)
		if err := repo.CreateTemplate(ctx, tpl, activities); err != nil {
			log.Fatalf("failed to create template %s: %v", spec.name, err)
		}
		log.Printf("created template %s with %d activities over %d days", tpl.Name, len(activities), tpl.DurationDays)

		for personality := range personalities {
			for i := 0; i < *sessionsPerTemplate; i++ {
				if err := seedCompletedSession(ctx, repo, rng, tpl, activities, personality); err != nil {
					log.Fatalf("failed to seed session: %v", err)
				}
			}
			log.Printf("seeded %d completed %s sessions for %s trainer", *sessionsPerTemplate, tpl.Name, personality)
		}
	}

	log.Println("seeding complete")
}

func buildTemplate(rng *rand.Rand, name string, days int) (domain.Template, []domain.Activity) {
	tpl := domain.Template{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  fmt.Sprintf("%s - %d day training program", name, days),
		DurationDays: days,
		CreatedAt:    time.Now().UTC(),
	}

	var activities []domain.Activity
	position := 0
	for day := 1; day <= days; day++ {
		cursor := workdayStart
		count := 6 + rng.Intn(7)
		for n := 0; n < count && cursor < workdayEnd; n++ {
			remaining := workdayEnd - cursor
			duration := minActivityMinutes
			if remaining > minActivityMinutes {
				limit := maxActivityMinutes
				if remaining < limit {
					limit = remaining
				}
				duration = minActivityMinutes + rng.Intn(limit-minActivityMinutes+1)
			}

			entry := activityCatalog[rng.Intn(len(activityCatalog))]
			activities = append(activities, domain.Activity{
				ID:          uuid.NewString(),
				TemplateID:  tpl.ID,
				Day:         day,
				Position:    position,
				Name:        fmt.Sprintf("%s (day %d.%d)", entry.name, day, n+1),
				Description: entry.description,
				StartTime:   domain.TimeOfDay(cursor),
				DurationMin: duration,
			})
			position++
			cursor += duration + breakMinutes
		}
	}
	return tpl, activities
}

// seedCompletedSession writes a finished run of the template, stamping
// actual timings shifted by the trainer's personality and the day's
// variance, all in the past.
func seedCompletedSession(ctx context.Context, repo *persistence.Repository, rng *rand.Rand, tpl domain.Template, activities []domain.Activity, personality string) error {
	startDate := time.Now().UTC().AddDate(0, 0, -(1 + rng.Intn(60)))
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)

	sess := domain.Session{
		ID:         uuid.NewString(),
		TemplateID: tpl.ID,
		Name:       fmt.Sprintf("%s (%s trainer)", tpl.Name, personality),
		CurrentDay: 1,
		StartDate:  startDate,
	}
	if err := repo.CreateSession(ctx, sess, nil); err != nil {
		return err
	}

	for day := 1; day <= tpl.DurationDays; day++ {
		dayDate := startDate.AddDate(0, 0, day-1)
		var progress []domain.ActivityProgress
		for _, activity := range activities {
			if activity.Day != day {
				continue
			}
			progress = append(progress, completedProgress(rng, sess.ID, activity, dayDate, personality))
		}

		sess.CurrentDay = day + 1
		sess.DayStarted = false
		if day == tpl.DurationDays {
			endDate := dayDate.Add(time.Duration(workdayEnd) * time.Minute)
			sess.EndDate = &endDate
		}
		if err := repo.ApplyProgression(ctx, sess, progress, nil); err != nil {
			return err
		}
	}
	return nil
}

func completedProgress(rng *rand.Rand, sessionID string, activity domain.Activity, dayDate time.Time, personality string) domain.ActivityProgress {
	startVariance := randBetween(rng, personalities[personality])
	dayShift, ok := dayVariance[activity.Day]
	if !ok {
		dayShift = [2]int{-5, 5}
	}
	startVariance += randBetween(rng, dayShift)

	// Duration drifts between -10% and +20% of plan, never below half.
	minDrift := -activity.DurationMin / 10
	if minDrift < -15 {
		minDrift = -15
	}
	maxDrift := activity.DurationMin / 5
	if maxDrift > 30 {
		maxDrift = 30
	}
	switch personality {
	case "Early Bird":
		if maxDrift > 15 {
			maxDrift = 15
		}
	case "Procrastinator":
		if minDrift < 0 {
			minDrift = 0
		}
	case "Chaotic":
		minDrift *= 2
		maxDrift *= 2
	}
	actualDuration := activity.DurationMin + randBetween(rng, [2]int{minDrift, maxDrift})
	if floor := activity.DurationMin / 2; actualDuration < floor {
		actualDuration = floor
	}

	actualStart := dayDate.Add(time.Duration(int(activity.StartTime)+startVariance) * time.Minute)
	actualEnd := actualStart.Add(time.Duration(actualDuration) * time.Minute)
	return domain.ActivityProgress{
		SessionID:         sessionID,
		ActivityID:        activity.ID,
		Completed:         true,
		ActualStart:       &actualStart,
		ActualEnd:         &actualEnd,
		ActualDurationMin: &actualDuration,
	}
}

func randBetween(rng *rand.Rand, bounds [2]int) int {
	if bounds[1] <= bounds[0] {
		return bounds[0]
	}
	return bounds[0] + rng.Intn(bounds[1]-bounds[0]+1)
}

// cmd/conctest fires many concurrent registrations at a competition with
// a handful of seats and reports whether it was over-booked.
//
// It runs against the store selected by EPH_STORE_DRIVER unless -driver
// is given; the default is the in-memory store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/app"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/capacity"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/clock"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/config"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/logging"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/service"
)

func main() {
	driver := flag.String("driver", config.DriverMemory, "store driver: memory, postgres or mongo")
	users := flag.Int("users", 50, "number of concurrent registrants")
	seats := flag.Int("seats", 1, "seats in the competition")
	flag.Parse()

	if err := run(*driver, *users, *seats); err != nil {
		fmt.Fprintf(os.Stderr, "conctest: %v\n", err)
		os.Exit(1)
	}
}

func run(driver string, users, seats int) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.Store.Driver = driver
	}
	cfg.Mail.Provider = config.MailLog
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env, "warn")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	comp, userIDs, err := seed(ctx, store, users, seats)
	if err != nil {
		return err
	}

	regs := service.NewRegistrationService(store, capacity.NewManager(store, logger), nil, clock.System{}, logger)

	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  Competitions: Concurrency Stress Test")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("Store          : %s\n", cfg.Store.Driver)
	fmt.Printf("Competition ID : %s\n", comp.ID)
	fmt.Printf("Seats          : %d\n\n", comp.TotalSeats)

	results, took := simulate(ctx, regs, comp.ID, userIDs)

	succeeded := 0
	failures := map[service.Kind]int{}
	for i, res := range results {
		if res.Success {
			succeeded++
			fmt.Printf("  goroutine %02d  BOOKED   (user: %s)\n", i+1, res.UserID)
			continue
		}
		failures[service.KindOf(res.Error)]++
	}

	final, err := store.GetCompetition(ctx, comp.ID)
	if err != nil {
		return fmt.Errorf("reload competition: %w", err)
	}
	count, err := store.CountRegistrations(ctx, comp.ID)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}

	fmt.Println()
	fmt.Println("Total attempts        :", len(results))
	fmt.Println("Successful bookings   :", succeeded)
	for kind, n := range failures {
		if kind == "" {
			kind = "internal"
		}
		fmt.Printf("Rejected (%s) : %d\n", kind, n)
	}
	fmt.Println("Time taken            :", took)
	fmt.Printf("Final state           : seats_remaining=%d registrations=%d\n", final.SeatsRemaining, count)

	want := min(seats, users)
	if succeeded != want || count != want || final.SeatsRemaining != seats-want {
		fmt.Printf("\nFAIL: expected %d bookings, got %d (over-booking)\n", want, succeeded)
		return fmt.Errorf("capacity violated")
	}
	fmt.Printf("\nPASS: exactly %d booking(s) succeeded\n", want)
	return nil
}

// seed creates the registrants and an open competition, starting a day out.
func seed(ctx context.Context, store repository.Store, users, seats int) (*model.Competition, []string, error) {
	run := uuid.NewString()[:8]
	now := time.Now().UTC()

	ids := make([]string, users)
	for i := range ids {
		u := &model.User{
			ID:       uuid.NewString(),
			Name:     fmt.Sprintf("Stress User %d", i+1),
			Email:    fmt.Sprintf("stress-%s-%d@conctest.local", run, i+1),
			Role:     model.RoleStudent,
			IsActive: true,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return nil, nil, fmt.Errorf("seed user: %w", err)
		}
		ids[i] = u.ID
	}

	c := &model.Competition{
		ID:             uuid.NewString(),
		Title:          "Capacity stress test " + run,
		Description:    fmt.Sprintf("Only %d seat(s) available", seats),
		SourceType:     model.SourceInternal,
		Tags:           []string{"conctest"},
		StartDate:      now.Add(24 * time.Hour),
		EndDate:        now.Add(48 * time.Hour),
		MaxTeamSize:    1,
		TotalSeats:     seats,
		SeatsRemaining: seats,
		Status:         model.StatusPublished,
		IsActive:       true,
		Stages:         model.DefaultStages(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.CreateCompetition(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("seed competition: %w", err)
	}
	return c, ids, nil
}

// simulate releases every registrant at once and collects the outcomes.
func simulate(ctx context.Context, regs *service.RegistrationService, competitionID string, userIDs []string) ([]model.RegistrationResult, time.Duration) {
	results := make([]model.RegistrationResult, len(userIDs))
	gate := make(chan struct{})
	var wg sync.WaitGroup

	for i, id := range userIDs {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			_, err := regs.Register(ctx, competitionID, id, model.RegisterRequest{Type: model.RegistrationIndividual})
			results[i] = model.RegistrationResult{UserID: id, Success: err == nil, Error: err}
		}()
	}

	start := time.Now()
	close(gate)
	wg.Wait()
	return results, time.Since(start)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"rewardsbot/activities"
	"rewardsbot/botlog"
	"rewardsbot/browser"
	"rewardsbot/config"
	"rewardsbot/diagnostics"
	"rewardsbot/events"
	"rewardsbot/ledger"
	"rewardsbot/monitor"
	"rewardsbot/throttle"
)

// dashboardData is the drop point for the external data feed: parsed
// dashboard promotions serialized to a file by whatever fetches them.
type dashboardData struct {
	Activities []activities.Activity  `json:"activities"`
	PunchCards []activities.PunchCard `json:"punchCards"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	dataPath := flag.String("data", "dashboard.json", "path to dashboard data JSON")
	daemon := flag.Bool("daemon", false, "run on the configured cron schedule")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := botlog.New(cfg.Mobile, "MAIN")

	stats := monitor.NewStats()
	monitor.Serve(cfg.MonitorAddr, stats, logger.With("MONITOR"))

	if !*daemon {
		runOnce(cfg, *dataPath, stats, logger)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, func() {
		runOnce(cfg, *dataPath, stats, logger)
	}); err != nil {
		log.Fatalf("cron spec %q: %v", cfg.CronSpec, err)
	}
	logger.Printf("daemon mode, schedule %q", cfg.CronSpec)
	c.Run()
}

func runOnce(cfg config.Config, dataPath string, stats *monitor.Stats, logger *botlog.Std) {
	runID := uuid.NewString()
	logger.Printf("run %s starting for %s", runID, cfg.Email)

	data, err := loadDashboard(dataPath)
	if err != nil {
		logger.Errorf("dashboard data: %v", err)
		return
	}

	ctx := context.Background()
	led := ledger.New(cfg.RedisAddr, cfg.LedgerEnabled, logger.With("LEDGER"))
	defer led.Close()

	bus, err := events.Connect(cfg.NATSURL, logger.With("EVENTS"))
	if err != nil {
		logger.Warnf("events disabled: %v", err)
	}
	defer bus.Close()

	session, err := browser.Launch(browser.Options{
		Headless: cfg.Headless,
		Mobile:   cfg.Mobile,
	}, logger.With("BROWSER"))
	if err != nil {
		logger.Errorf("browser: %v", err)
		return
	}
	defer session.Close()

	if err := session.Open(cfg.DashboardURL); err != nil {
		logger.Errorf("opening dashboard: %v", err)
		return
	}

	capturer := diagnostics.New(cfg.DiagnosticsDir, logger.With("DIAG"))

	orch := activities.NewOrchestrator(logger.With("SOLVE"), throttle.New())
	orch.BaseURL = cfg.DashboardURL
	orch.HandlerTimeout = cfg.HandlerTimeout()
	orch.HandlerRetries = cfg.HandlerRetries
	orch.ClickAttempts = cfg.ClickAttempts
	orch.MaxTabs = cfg.MaxTabs
	orch.MaxCandidates = cfg.MaxCandidates
	orch.Stats = stats
	orch.Diagnose = capturer.Capture
	orch.Publish = func(a activities.Activity, kind activities.Kind, status string) {
		bus.Publish(events.ActivityEvent{
			RunID:     runID,
			Email:     cfg.Email,
			OfferID:   a.OfferID,
			Title:     a.Title,
			Kind:      kind.String(),
			Status:    status,
			Timestamp: time.Now(),
		})
	}

	today := time.Now()

	// Ledger pre-filter: anything already recorded for today is skipped
	// before the engine ever sees it.
	offerIDs := make([]string, 0, len(data.Activities))
	for _, a := range data.Activities {
		offerIDs = append(offerIDs, a.OfferID)
	}
	keep := make(map[string]bool, len(offerIDs))
	for _, id := range led.FilterPending(ctx, cfg.Email, today, offerIDs) {
		keep[id] = true
	}
	pending := make([]activities.Activity, 0, len(data.Activities))
	for _, a := range data.Activities {
		if !keep[a.OfferID] {
			logger.Printf("already done today: %q", a.Title)
			continue
		}
		pending = append(pending, a)
	}

	completed := orch.Run(session.Page, pending, nil)
	for _, card := range data.PunchCards {
		completed = append(completed, orch.SolvePunchCard(session.Page, card)...)
	}

	// Ledger writes happen here, after handlers succeeded, keeping "did
	// it run" separate from "should we remember it ran".
	for _, offerID := range completed {
		led.MarkDone(ctx, cfg.Email, today, offerID)
	}
	logger.Printf("run %s finished: %d completed, %d skipped by ledger",
		runID, len(completed), len(data.Activities)-len(pending))
}

func loadDashboard(path string) (dashboardData, error) {
	var data dashboardData
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(raw, &data)
	return data, err
}

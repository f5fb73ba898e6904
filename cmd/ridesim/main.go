// Command ridesim drives deterministic ride scenarios through the service
// boundary and verifies the pipeline's ordering and escalation guarantees.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/goshield/goshield/internal/app"
	"github.com/goshield/goshield/internal/config"
	"github.com/goshield/goshield/internal/simulate"
	"github.com/goshield/goshield/pkg/logger"
)

func main() {
	sessions := flag.Int("sessions", 1, "number of ride scenarios to run")
	seed := flag.Int64("seed", 1, "base seed for delivery shuffling")
	window := flag.Int("window", 8, "out-of-order delivery window (max in-flight)")
	duplicates := flag.Int("duplicates", 2, "duplicate re-deliveries per session")
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	_ = logger.SetLevelString("warn")

	ctx := context.Background()
	cfg := config.New()
	svc := app.New(app.WithConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "service start failed:", err)
		os.Exit(1)
	}
	defer svc.Stop(ctx)

	runner := simulate.NewRunner(svc, nil)
	failures := 0
	for i := 0; i < *sessions; i++ {
		sc := simulate.DefaultScenario()
		sc.Seed = *seed + int64(i)
		sc.Window = *window
		sc.Duplicates = *duplicates

		report, err := runner.Run(ctx, sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run %d: %v\n", i, err)
			failures++
			continue
		}
		if err := report.Verify(sc, cfg.Escalation.ResolveAfterLows); err != nil {
			fmt.Fprintf(os.Stderr, "run %d verification: %v\n", i, err)
			failures++
			continue
		}
		fmt.Printf("run %d session %s: committed=%d stale=%d incidents=%d highest=%.0f final=%s\n",
			i, report.SessionID, report.Committed, report.Stale, report.Incidents,
			report.Summary.HighestScore, report.Summary.CurrentLevel)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d runs failed\n", failures, *sessions)
		os.Exit(1)
	}
	fmt.Printf("all %d runs verified\n", *sessions)
}

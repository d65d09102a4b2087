package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lynxops/sentinel/internal/config"
	"github.com/lynxops/sentinel/internal/harness"
	"github.com/lynxops/sentinel/internal/incident"
	"github.com/lynxops/sentinel/internal/notify"
	"github.com/lynxops/sentinel/internal/store"
	"github.com/lynxops/sentinel/internal/store/sqlstore"
	"github.com/lynxops/sentinel/internal/telemetry"
)

func main() {
	exitFn(run(os.Stdout, os.Stderr))
}

var exitFn = os.Exit

// consolePoster prints alerts instead of delivering them. Used when no
// webhook is configured, typically in-memory development runs.
type consolePoster struct {
	w io.Writer
}

func (p consolePoster) Post(channel string, body string) error {
	fmt.Fprintf(p.w, "notify %s: %s\n", channel, body)
	return nil
}

func run(stdout io.Writer, stderr io.Writer) int {
	cfg, err := config.Load(os.Getenv("SENTINEL_CONFIG"))
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "store:", err)
		return 1
	}
	defer closeStore()

	tp, err := telemetry.NewProvider(ctx, "sentinel-accept", cfg.Telemetry.OTLPEndpoint, st)
	if err != nil {
		fmt.Fprintln(stderr, "telemetry:", err)
		return 1
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	sw := incident.NewSwitch(st)
	defer sw.Close()

	notifier := &notify.OutboxNotifier{Store: st, Channel: cfg.Notify.Channel}
	ctrl := incident.NewController(st, sw, notifier, nil, incident.OptionsFromConfig(cfg))

	var poster notify.Poster = consolePoster{w: stdout}
	if cfg.Notify.WebhookURL != "" {
		poster = notify.NewWebhookPoster(cfg.Notify.WebhookURL)
	}

	runner := harness.NewRunner(st, ctrl, tp.Tracer("sentinel-accept"), poster, harness.OptionsFromConfig(cfg))

	fmt.Fprintln(stdout, "starting acceptance run")
	report, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "acceptance run failed:", err)
		return 1
	}

	printSummary(stdout, report)

	if !report.AllPassed() {
		return 1
	}
	return 0
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DB.Driver != "" {
		st, err := sqlstore.Open(sqlstore.Driver(cfg.DB.Driver), cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}

	// In-memory runs have no external runtime to observe; seed a synthetic
	// population so the kill-switch cycles have something to stop.
	mem := store.NewMemory()
	at := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range []store.RuntimeStatusRecord{
		{ID: "agent-1", Kind: store.KindAgent, Status: store.StatusRunning, ChangedAt: at},
		{ID: "agent-2", Kind: store.KindAgent, Status: store.StatusRunning, ChangedAt: at},
		{ID: "workflow-1", Kind: store.KindWorkflow, Status: store.StatusRunning, ChangedAt: at},
	} {
		if err := mem.PutRuntimeStatus(ctx, rec); err != nil {
			return nil, nil, err
		}
	}
	return mem, func() {}, nil
}

func printSummary(w io.Writer, report harness.Report) {
	fmt.Fprintf(w, "\nacceptance summary: %d/%d passed in %dms\n",
		report.Summary.Passed, report.Summary.TotalTests, report.Summary.DurationMS)
	for _, test := range report.Tests {
		status := "PASS"
		if !test.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  %s  %-26s %6dms", status, test.Name, test.DurationMS)
		if test.Error != "" {
			fmt.Fprintf(w, "  %s", test.Error)
		}
		fmt.Fprintln(w)
	}
}

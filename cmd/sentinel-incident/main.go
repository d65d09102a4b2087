package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lynxops/sentinel/internal/config"
	"github.com/lynxops/sentinel/internal/incident"
	"github.com/lynxops/sentinel/internal/notify"
	"github.com/lynxops/sentinel/internal/store"
	"github.com/lynxops/sentinel/internal/store/sqlstore"
	"github.com/lynxops/sentinel/internal/telemetry"
)

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: sentinel-incident [-config file] <command>")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  handle <incident-json>   respond to a reported incident")
	fmt.Fprintln(w, "  resume <incident-id>     resume the system after an incident")
	fmt.Fprintln(w, "  list                     list active incidents")
	fmt.Fprintln(w, "  test                     run a canned medium incident")
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("sentinel-incident", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("SENTINEL_CONFIG"), "path to config file")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	ctx := context.Background()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "store:", err)
		return 1
	}
	defer closeStore()

	shutdown, err := telemetry.Setup(ctx, "sentinel-incident", cfg.Telemetry.OTLPEndpoint, st)
	if err != nil {
		fmt.Fprintln(stderr, "telemetry:", err)
		return 1
	}
	defer func() { _ = shutdown(ctx) }()

	sw := incident.NewSwitch(st)
	defer sw.Close()

	notifier := &notify.OutboxNotifier{Store: st, Channel: cfg.Notify.Channel}
	ctrl := incident.NewController(st, sw, notifier, nil, incident.OptionsFromConfig(cfg))

	switch fs.Arg(0) {
	case "handle":
		if fs.NArg() != 2 {
			fmt.Fprintln(stderr, "handle requires <incident-json>")
			return 2
		}
		return handleCommand(ctx, ctrl, st, cfg, fs.Arg(1), stdout, stderr)
	case "resume":
		if fs.NArg() != 2 {
			fmt.Fprintln(stderr, "resume requires <incident-id>")
			return 2
		}
		return resumeCommand(ctx, ctrl, st, cfg, fs.Arg(1), stdout, stderr)
	case "list":
		return listCommand(ctx, st, stdout, stderr)
	case "test":
		report := incident.Report{
			Level:       incident.LevelMedium,
			Type:        "test_incident",
			Description: "Test incident for validation",
			Source:      "manual_test",
		}
		raw, _ := json.Marshal(report)
		return handleCommand(ctx, ctrl, st, cfg, string(raw), stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	if cfg.DB.Driver == "" {
		return store.NewMemory(), func() {}, nil
	}
	st, err := sqlstore.Open(sqlstore.Driver(cfg.DB.Driver), cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

func handleCommand(ctx context.Context, ctrl *incident.Controller, st store.Store, cfg config.Config, rawReport string, stdout io.Writer, stderr io.Writer) int {
	var report incident.Report
	if err := json.Unmarshal([]byte(rawReport), &report); err != nil {
		fmt.Fprintln(stderr, "invalid incident json:", err)
		return 2
	}

	inc, err := ctrl.Handle(ctx, report)
	if err != nil {
		fmt.Fprintln(stderr, "incident handling failed:", err)
		return 1
	}

	drainOutbox(ctx, st, cfg, stderr)

	fmt.Fprintf(stdout, "incident %s handled: level=%s status=%s actions=%d\n",
		inc.ID, inc.Level, inc.Status, len(inc.Actions))
	for _, action := range inc.Actions {
		state := "ok"
		if !action.Success {
			state = "failed: " + action.Error
		}
		fmt.Fprintf(stdout, "  %-22s %6dms  %s\n", action.Type, action.DurationMS, state)
	}
	return 0
}

func resumeCommand(ctx context.Context, ctrl *incident.Controller, st store.Store, cfg config.Config, incidentID string, stdout io.Writer, stderr io.Writer) int {
	inc, err := ctrl.Resume(ctx, incidentID)
	if err != nil {
		fmt.Fprintln(stderr, "resume failed:", err)
		return 1
	}

	drainOutbox(ctx, st, cfg, stderr)

	fmt.Fprintf(stdout, "incident %s resolved: status=%s duration=%dms\n",
		inc.ID, inc.Status, inc.Resolution.DurationMS)
	return 0
}

func listCommand(ctx context.Context, st store.Store, stdout io.Writer, stderr io.Writer) int {
	incidents, err := st.ListIncidents(ctx, incident.StatusActive)
	if err != nil {
		fmt.Fprintln(stderr, "list failed:", err)
		return 1
	}

	fmt.Fprintf(stdout, "active incidents: %d\n", len(incidents))
	for _, rec := range incidents {
		fmt.Fprintf(stdout, "  %s  %s (%s)\n", rec.IncidentID, rec.Type, rec.Level)
	}
	return 0
}

// drainOutbox attempts immediate delivery of any alerts enqueued during the
// command. Undelivered alerts stay pending for the next invocation.
func drainOutbox(ctx context.Context, st store.Store, cfg config.Config, stderr io.Writer) {
	if cfg.Notify.WebhookURL == "" {
		return
	}
	poster := notify.NewWebhookPoster(cfg.Notify.WebhookURL)
	if _, err := notify.ProcessDue(ctx, st, poster, time.Now(), 25); err != nil {
		fmt.Fprintln(stderr, "notify:", err)
	}
}

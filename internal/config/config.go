package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from "30s"-style strings in
// both yaml files and environment variables.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

type Config struct {
	DB           DBConfig        `yaml:"db"`
	ArtifactsDir string          `yaml:"artifacts_dir" env:"SENTINEL_ARTIFACTS_DIR"`
	EvidenceDir  string          `yaml:"evidence_dir" env:"SENTINEL_EVIDENCE_DIR"`
	Notify       NotifyConfig    `yaml:"notify"`
	Actions      ActionsConfig   `yaml:"actions"`
	Degrade      DegradeConfig   `yaml:"degrade"`
	Harness      HarnessConfig   `yaml:"harness"`
	Telemetry    TelemetryConfig `yaml:"telemetry"`
}

type DBConfig struct {
	Driver string `yaml:"driver" env:"SENTINEL_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"SENTINEL_DB_DSN"`
}

type NotifyConfig struct {
	Channel    string `yaml:"channel" env:"SENTINEL_NOTIFY_CHANNEL"`
	WebhookURL string `yaml:"webhook_url" env:"SENTINEL_NOTIFY_WEBHOOK"`
}

type ActionsConfig struct {
	EmergencyStopTimeout   Duration `yaml:"emergency_stop_timeout" env:"SENTINEL_EMERGENCY_STOP_TIMEOUT"`
	SoftDegradeTimeout     Duration `yaml:"soft_degrade_timeout" env:"SENTINEL_SOFT_DEGRADE_TIMEOUT"`
	RollbackTimeout        Duration `yaml:"rollback_timeout" env:"SENTINEL_ROLLBACK_TIMEOUT"`
	ResumePropagationDelay Duration `yaml:"resume_propagation_delay" env:"SENTINEL_RESUME_PROPAGATION_DELAY"`
}

type DegradeConfig struct {
	NominalConcurrency int `yaml:"nominal_concurrency" env:"SENTINEL_NOMINAL_CONCURRENCY"`
	ReducedConcurrency int `yaml:"reduced_concurrency" env:"SENTINEL_REDUCED_CONCURRENCY"`
}

type HarnessConfig struct {
	SyntheticTasks   int      `yaml:"synthetic_tasks" env:"SENTINEL_HARNESS_SYNTHETIC_TASKS"`
	ForcedErrors     int      `yaml:"forced_errors" env:"SENTINEL_HARNESS_FORCED_ERRORS"`
	IsolationTrials  int      `yaml:"isolation_trials" env:"SENTINEL_HARNESS_ISOLATION_TRIALS"`
	KillSwitchCycles int      `yaml:"kill_switch_cycles" env:"SENTINEL_HARNESS_KILL_SWITCH_CYCLES"`
	TestTimeout      Duration `yaml:"test_timeout" env:"SENTINEL_HARNESS_TEST_TIMEOUT"`
	TaskDelay        Duration `yaml:"task_delay" env:"SENTINEL_HARNESS_TASK_DELAY"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"SENTINEL_OTLP_ENDPOINT"`
}

// Default returns the configuration used when no file or env overrides are
// present. Action timeouts follow the incident runbook values.
func Default() Config {
	return Config{
		ArtifactsDir: "artifacts",
		EvidenceDir:  "artifacts/green-posture",
		Notify:       NotifyConfig{Channel: "#ops-incidents"},
		Actions: ActionsConfig{
			EmergencyStopTimeout:   Duration(30 * time.Second),
			SoftDegradeTimeout:     Duration(60 * time.Second),
			RollbackTimeout:        Duration(5 * time.Minute),
			ResumePropagationDelay: Duration(2 * time.Second),
		},
		Degrade: DegradeConfig{
			NominalConcurrency: 150,
			ReducedConcurrency: 50,
		},
		Harness: HarnessConfig{
			SyntheticTasks:   3,
			ForcedErrors:     2,
			IsolationTrials:  5,
			KillSwitchCycles: 3,
			TestTimeout:      Duration(60 * time.Second),
			TaskDelay:        Duration(50 * time.Millisecond),
		},
	}
}

// Load reads the optional yaml file at path, expands ${VAR} references,
// applies SENTINEL_* environment overrides, and validates the result. An
// empty path yields defaults plus env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		expanded := os.ExpandEnv(string(raw))
		expanded = strings.ReplaceAll(expanded, "\r\n", "\n")
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DB.Driver != "" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is set")
	}
	switch c.DB.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("artifacts_dir is required")
	}
	if c.EvidenceDir == "" {
		return fmt.Errorf("evidence_dir is required")
	}
	if c.Degrade.ReducedConcurrency >= c.Degrade.NominalConcurrency {
		return fmt.Errorf("degrade.reduced_concurrency must be below degrade.nominal_concurrency")
	}
	for name, d := range map[string]Duration{
		"actions.emergency_stop_timeout": c.Actions.EmergencyStopTimeout,
		"actions.soft_degrade_timeout":   c.Actions.SoftDegradeTimeout,
		"actions.rollback_timeout":       c.Actions.RollbackTimeout,
		"harness.test_timeout":           c.Harness.TestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Package pipeline drives the external schema-migration and code-generation
// toolchain as isolated subprocesses.
//
// A run has two ordered steps: apply pushes the schema document to the
// backing store, generate produces a fresh data-access artifact into a
// timestamp-named build directory. Either step failing aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schemasmith/schemasmith/schemadoc"
)

// schemaPlaceholder in a generate command is replaced with the path of the
// transient schema copy targeting the new build directory.
const schemaPlaceholder = "{schema}"

// Config holds the toolchain commands. Commands are argv-style; an empty
// command is a configuration error surfaced on Run.
type Config struct {
	Apply            []string
	ApplyDestructive []string
	Generate         []string

	// StepTimeout bounds each subprocess. The toolchain itself imposes no
	// limit, so a stuck migration would otherwise wedge the single-flight
	// lock forever.
	StepTimeout time.Duration
}

// Runner executes the pipeline against one schema document.
type Runner struct {
	schema    *schemadoc.Editor
	buildsDir string
	cfg       Config
	logger    zerolog.Logger

	// now is swappable for tests so build dir names are deterministic.
	now func() time.Time
}

// New creates a pipeline runner.
func New(schema *schemadoc.Editor, buildsDir string, cfg Config, logger zerolog.Logger) *Runner {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 2 * time.Minute
	}
	return &Runner{
		schema:    schema,
		buildsDir: buildsDir,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes apply then generate and returns the new build directory.
// destructive selects the apply variant that accepts data loss (the delete
// flow); the non-destructive variant is expected to refuse or skip
// destructive changes, behavior left to the configured tool.
func (r *Runner) Run(ctx context.Context, destructive bool) (string, error) {
	applyCmd := r.cfg.Apply
	if destructive {
		applyCmd = r.cfg.ApplyDestructive
	}

	if err := r.runStep(ctx, "apply", applyCmd); err != nil {
		return "", fmt.Errorf("apply schema: %w", err)
	}

	buildDir := filepath.Join(r.buildsDir, fmt.Sprintf("%d", r.now().UnixMilli()))
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}

	tmpSchema, err := r.schema.WriteBuildCopy(buildDir)
	if err != nil {
		return "", fmt.Errorf("render build schema: %w", err)
	}

	generateCmd := substitute(r.cfg.Generate, schemaPlaceholder, tmpSchema)
	if err := r.runStep(ctx, "generate", generateCmd); err != nil {
		return "", fmt.Errorf("generate data-access module: %w", err)
	}

	return buildDir, nil
}

// runStep runs one subprocess with the step timeout.
func (r *Runner) runStep(ctx context.Context, step string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s command not configured", step)
	}

	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()

	logEvent := r.logger.Debug()
	if err != nil {
		logEvent = r.logger.Error().Err(err)
	}
	logEvent.
		Str("step", step).
		Str("command", strings.Join(argv, " ")).
		Dur("duration", time.Since(start)).
		Str("output", strings.TrimSpace(string(out))).
		Msg("pipeline step finished")

	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", step, r.cfg.StepTimeout)
		}
		return fmt.Errorf("%s: %w: %s", step, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// substitute replaces placeholder occurrences in an argv copy.
func substitute(argv []string, placeholder, value string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, placeholder, value)
	}
	return out
}

package install

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/config"
	"github.com/slitos/slit-install/pkg/errs"
	"github.com/slitos/slit-install/pkg/model"
)

// Result is the full record of an installation run.
type Result = model.InstallResult

// Options control how an installation run reports progress. Whether commands
// actually execute is decided by the runner, not here.
type Options struct {
	HumanProgress bool
}

var buildPhasesFn = buildPhases

// Run validates the configuration and executes the installation phases in
// order, stopping at the first failure. The returned Result is populated in
// both the success and the failure case.
func Run(ctx context.Context, logger zerolog.Logger, cfg config.SystemConfig, runner commandRunner, opts Options) (Result, error) {
	res := Result{
		Status:      "running",
		StartedAt:   time.Now().UTC(),
		TargetDrive: cfg.TargetDrive,
		Hostname:    cfg.Hostname,
		DryRun:      runner.Simulating(),
	}

	if err := cfg.Validate(); err != nil {
		for _, issue := range errs.Issues(err) {
			logger.Error().
				Str("field", fmt.Sprint(issue.Details["field"])).
				Str("expected", fmt.Sprint(issue.Details["expected"])).
				Msg(issue.Message)
		}
		res.Status = "failed"
		res.EndedAt = time.Now().UTC()
		res.Error = fmt.Sprintf("configuration invalid: %v", err)
		return res, errs.Wrap(err, errs.CodeValidation, "configuration invalid")
	}

	phases := buildPhasesFn(phaseDeps{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		root:   InstallRoot,
	})
	total := len(phases)

	res.Phases = make([]model.PhaseResult, total)
	for i, p := range phases {
		res.Phases[i] = model.PhaseResult{Name: p.name, Status: model.PhaseStatusPending}
	}

	if res.DryRun {
		logger.Info().Msg("dry run: commands are simulated, nothing will be changed")
		if opts.HumanProgress {
			fmt.Printf("\033[33mDRY RUN\033[0m no changes will be made, commands are simulated\n")
		}
	}

	for i, p := range phases {
		res.Phases[i].Status = model.PhaseStatusRunning

		if opts.HumanProgress {
			pct := i * 100 / total
			fmt.Printf("\033[36m[%d/%d]\033[0m \033[1m%s\033[0m \033[90m(%d%%)\033[0m\n", i+1, total, p.name, pct)
			fmt.Printf("  \033[90m%s\033[0m\n", p.desc)
		} else {
			logger.Info().
				Str("phase", p.name).
				Int("number", i+1).
				Int("total", total).
				Msg("phase started")
		}

		started := time.Now()
		err := p.phase.Execute(ctx)
		d := time.Since(started)
		res.Phases[i].Duration = d.Truncate(time.Millisecond).String()

		if err != nil {
			res.Phases[i].Status = model.PhaseStatusFailed
			res.Phases[i].Message = err.Error()
			res.Status = "failed"
			res.FailedPhase = i + 1
			res.EndedAt = time.Now().UTC()
			res.Error = fmt.Sprintf("phase %s failed: %v", p.name, err)

			if opts.HumanProgress {
				fmt.Printf("  \033[31m✗ failed\033[0m in %s\n", d.Truncate(time.Millisecond))
			}
			logger.Error().
				Str("phase", p.name).
				Int("number", i+1).
				Dur("duration", d).
				Err(err).
				Msg("phase failed")
			return res, errs.PhaseFailed(i+1, p.name, err)
		}

		res.Phases[i].Status = model.PhaseStatusCompleted
		if opts.HumanProgress {
			pct := (i + 1) * 100 / total
			fmt.Printf("  \033[32m✓ done\033[0m in %s \033[90m[%d/%d %d%%]\033[0m\n", d.Truncate(time.Millisecond), i+1, total, pct)
		} else {
			logger.Info().
				Str("phase", p.name).
				Int("number", i+1).
				Int("total", total).
				Dur("duration", d).
				Msg("phase completed")
		}
	}

	res.Status = "success"
	res.EndedAt = time.Now().UTC()
	logger.Info().
		Str("drive", res.TargetDrive).
		Bool("dry_run", res.DryRun).
		Msg("installation finished")
	return res, nil
}

package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	osexec "os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/pkg/errs"
)

// SimulatedOutput is the stdout marker returned for every call in
// simulate-only mode.
const SimulatedOutput = "[DRY RUN] Command would execute successfully"

// Result is the outcome of one command invocation. Success is true iff the
// exit code is zero; simulate-only mode always reports success with exit 0.
type Result struct {
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// ProgressFunc receives coarse before/after notifications around one command.
type ProgressFunc func(step, total int, message string)

// Options controls one invocation.
type Options struct {
	Capture  bool
	FailFast bool
	Timeout  time.Duration
	Dir      string
	Env      map[string]string
	Stdin    string
}

// Runner is the only channel through which the installer touches the host.
// In simulate mode no process is ever spawned.
type Runner struct {
	simulate bool
	logger   zerolog.Logger
}

func NewRunner(logger zerolog.Logger, simulate bool) *Runner {
	return &Runner{simulate: simulate, logger: logger}
}

// Simulating reports whether the runner substitutes logging for execution.
func (r *Runner) Simulating() bool {
	return r.simulate
}

// Run executes command, described by description in logs. With FailFast set a
// non-zero exit returns a command failure instead of a Result; without it the
// caller inspects Result.Success. Timeout expiry and spawn errors surface as
// exit code -1, never as raw platform errors.
func (r *Runner) Run(ctx context.Context, command, description string, opts Options) (Result, error) {
	r.logger.Debug().
		Str("command", command).
		Str("description", description).
		Bool("simulate", r.simulate).
		Msg("executing command")

	if r.simulate {
		r.logger.Info().Str("command", command).Msg("[DRY RUN] would execute")
		return Result{Success: true, ExitCode: 0, Stdout: SimulatedOutput}, nil
	}

	argv, err := shellquote.Split(command)
	if err != nil || len(argv) == 0 {
		return r.finish(command, description, Result{Success: false, ExitCode: -1}, opts,
			errs.Wrapf(errOrInvalid(err), errs.CodeCommandFailed, "parse command %q", command))
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = mergedEnv(opts.Env)
	}
	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if opts.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	started := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	switch {
	case runErr == nil:
		res.Success = true
		res.ExitCode = 0
		return r.finish(command, description, res, opts, nil)
	case runCtx.Err() != nil:
		// Timeout or cancellation: the process was killed before a real
		// exit code existed.
		res.ExitCode = -1
		return r.finish(command, description, res, opts,
			errs.Wrapf(runCtx.Err(), errs.CodeCommandFailed, "command timed out: %s", command))
	default:
		var exitErr *osexec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure: binary missing, permission denied.
			res.ExitCode = -1
		}
		return r.finish(command, description, res, opts,
			errs.Wrapf(runErr, errs.CodeCommandFailed, "command failed: %s", command))
	}
}

// RunWithProgress wraps Run with before/after callbacks in the fixed
// (step, total, message) shape.
func (r *Runner) RunWithProgress(ctx context.Context, command, description string, opts Options, progress ProgressFunc) (Result, error) {
	if progress != nil {
		progress(0, 1, "Starting: "+description)
	}
	res, err := r.Run(ctx, command, description, opts)
	if progress != nil {
		if res.Success {
			progress(1, 1, "Completed: "+description)
		} else {
			progress(0, 1, "Failed: "+description)
		}
	}
	return res, err
}

// finish writes the outcome log line and applies the fail-fast contract:
// the detailed failure is returned only when FailFast is set, otherwise the
// caller gets the Result alone.
func (r *Runner) finish(command, description string, res Result, opts Options, failure error) (Result, error) {
	if failure == nil {
		r.logger.Debug().
			Str("command", command).
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Msg("command succeeded")
		return res, nil
	}

	r.logger.Warn().
		Str("command", command).
		Str("description", description).
		Int("exit_code", res.ExitCode).
		Str("stderr", truncateStream(res.Stderr)).
		Msg("command failed")

	if !opts.FailFast {
		return res, nil
	}
	cmdErr := errs.CommandFailed(command, res.ExitCode, res.Stdout, res.Stderr)
	cmdErr.Wrapped = failure
	return res, cmdErr
}

func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return errors.New("empty command")
}

// truncateStream keeps failure logs readable when a tool dumps pages of
// output on stderr.
func truncateStream(s string) string {
	s = strings.TrimSpace(s)
	const max = 360
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

package config

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/exec"
)

const detectTimeout = 5 * time.Second

var (
	defaultRouteDevRE = regexp.MustCompile(`dev\s+(\S+)`)
	linkNameRE        = regexp.MustCompile(`^\d+:\s+(\S+):`)
)

type commandRunner interface {
	Run(ctx context.Context, command, description string, opts exec.Options) (exec.Result, error)
}

// Detector guesses sensible configuration defaults from the running live
// environment. Every probe degrades to the built-in default on failure.
type Detector struct {
	runner       commandRunner
	logger       zerolog.Logger
	timezonePath string
}

func NewDetector(logger zerolog.Logger, runner commandRunner) *Detector {
	return &Detector{
		runner:       runner,
		logger:       logger,
		timezonePath: "/etc/timezone",
	}
}

// Locale returns the first well-formed locale from the usual environment
// variables, or the default.
func (d *Detector) Locale(ctx context.Context) string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" && ValidLocale(v) {
			return v
		}
	}
	return DefaultLocale
}

// Timezone reads the system timezone, preferring /etc/timezone and falling
// back to timedatectl.
func (d *Detector) Timezone(ctx context.Context) string {
	if raw, err := os.ReadFile(d.timezonePath); err == nil {
		if tz := strings.TrimSpace(string(raw)); ValidTimezone(tz) {
			return tz
		}
	}

	res, _ := d.runner.Run(ctx, "timedatectl show --property=Timezone --value", "read system timezone", exec.Options{
		Capture: true,
		Timeout: detectTimeout,
	})
	if res.Success {
		if tz := strings.TrimSpace(res.Stdout); ValidTimezone(tz) {
			return tz
		}
	}

	return DefaultTimezone
}

// Interface finds the primary network interface: the default-route device if
// there is one, otherwise the first non-loopback link.
func (d *Detector) Interface(ctx context.Context) string {
	res, _ := d.runner.Run(ctx, "ip route show default", "find default route", exec.Options{
		Capture: true,
		Timeout: detectTimeout,
	})
	if res.Success {
		if m := defaultRouteDevRE.FindStringSubmatch(res.Stdout); m != nil {
			return m[1]
		}
	}

	res, _ = d.runner.Run(ctx, "ip link show", "list network links", exec.Options{
		Capture: true,
		Timeout: detectTimeout,
	})
	if res.Success {
		for _, line := range strings.Split(res.Stdout, "\n") {
			m := linkNameRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !strings.HasPrefix(m[1], "lo") {
				return m[1]
			}
		}
	}

	d.logger.Debug().Msg("no network interface detected, using default")
	return DefaultInterface
}

package deployer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/ysy950803/userdbclean/internal/errors"
)

const (
	DefaultTimeout      = 2 * time.Minute
	defaultPollInterval = 500 * time.Millisecond

	// WindowsDeployer is the deployer shipped in the shared data dir on Windows.
	WindowsDeployer = "WeaselDeployer.exe"
)

// Directive is an operation understood by the external deployer.
type Directive string

const (
	Sync   Directive = "sync"
	Deploy Directive = "deploy"
)

func ParseDirective(s string) (Directive, error) {
	switch d := Directive(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "/")))); d {
	case Sync, Deploy:
		return d, nil
	default:
		return "", errors.InvalidArgument("unknown deployer directive %q", s)
	}
}

// ParseDirectives parses a configured directive list, skipping blanks.
func ParseDirectives(list []string) ([]Directive, error) {
	out := make([]Directive, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		d, err := ParseDirective(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Arg is the command line switch for the directive.
func (d Directive) Arg() string {
	return "/" + string(d)
}

// Collaborator performs directives against the external deployer.
type Collaborator interface {
	Perform(ctx context.Context, d Directive) error
}

// Noop is used where no external deployer is installed.
type Noop struct{}

func (Noop) Perform(_ context.Context, d Directive) error {
	log.Debug().Str("directive", string(d)).Msg("no deployer configured, skipping")
	return nil
}

type Config struct {
	Path     string
	Timeout  time.Duration
	WaitIdle bool
}

// ProcessLister returns the executable names of running processes.
type ProcessLister func(ctx context.Context) ([]string, error)

// Exec runs the deployer executable once per directive.
type Exec struct {
	path         string
	timeout      time.Duration
	waitIdle     bool
	list         ProcessLister
	pollInterval time.Duration
}

// New returns an Exec for conf.Path, or Noop when the path is unset or the
// executable does not exist.
func New(conf Config) Collaborator {
	if conf.Path == "" {
		return Noop{}
	}
	if info, err := os.Stat(conf.Path); err != nil || info.IsDir() {
		log.Info().Str("path", conf.Path).Msg("deployer executable not found, sync disabled")
		return Noop{}
	}
	return NewExec(conf)
}

func NewExec(conf Config) *Exec {
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	return &Exec{
		path:         conf.Path,
		timeout:      conf.Timeout,
		waitIdle:     conf.WaitIdle,
		list:         runningProcessNames,
		pollInterval: defaultPollInterval,
	}
}

// WithProcessLister replaces the gopsutil process scan.
func (e *Exec) WithProcessLister(list ProcessLister, pollInterval time.Duration) *Exec {
	e.list = list
	if pollInterval > 0 {
		e.pollInterval = pollInterval
	}
	return e
}

func (e *Exec) Perform(ctx context.Context, d Directive) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.waitIdle {
		if err := e.waitForIdle(ctx); err != nil {
			return errors.SyncCollaboratorFailed(string(d), err)
		}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.path, d.Arg())
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s", e.timeout)
	}
	if err != nil {
		return errors.SyncCollaboratorFailed(string(d), fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String())))
	}

	log.Debug().
		Str("directive", string(d)).
		Dur("elapsed", time.Since(start)).
		Msg("deployer finished")
	return nil
}

// waitForIdle blocks while another deployer instance is running.
func (e *Exec) waitForIdle(ctx context.Context) error {
	name := filepath.Base(e.path)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		names, err := e.list(ctx)
		if err != nil {
			// 无法枚举进程时直接执行
			log.Warn().Err(err).Msg("failed to list processes")
			return nil
		}
		if !containsName(names, name) {
			return nil
		}
		log.Debug().Str("name", name).Msg("deployer busy, waiting")

		select {
		case <-ctx.Done():
			return errors.DeployerBusy(name)
		case <-ticker.C:
		}
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name || (runtime.GOOS == "windows" && strings.EqualFold(n, name)) {
			return true
		}
	}
	return false
}

func runningProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	self := int32(os.Getpid())
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// PerformAll runs directives in order. Every directive is attempted; the
// failures are joined.
func PerformAll(ctx context.Context, c Collaborator, directives []Directive) error {
	var errs []error
	for _, d := range directives {
		if err := c.Perform(ctx, d); err != nil {
			log.Warn().Err(err).Str("directive", string(d)).Msg("deployer directive failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

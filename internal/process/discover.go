// Package process discovers running agent CLI processes.
//
// Discovery shells out to ps (and lsof where /proc is unavailable), so every
// command runs under its own short deadline: a hung introspection call costs
// one field of one record, never the whole poll.
package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/types"
)

// Defaults for a Discoverer.
const (
	DefaultTarget         = "claude"
	DefaultCommandTimeout = 5 * time.Second
	DefaultProcRoot       = "/proc"
)

// Discoverer enumerates target CLI processes.
type Discoverer struct {
	runner   Runner
	clock    clock.Clock
	target   string
	timeout  time.Duration
	procRoot string
	ttyAlive func(tty string) bool
	logger   *slog.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(d *Discoverer) { d.runner = r }
}

// WithClock sets the clock used to turn elapsed times into start times.
func WithClock(c clock.Clock) Option {
	return func(d *Discoverer) { d.clock = c }
}

// WithTarget sets the executable name to look for.
func WithTarget(name string) Option {
	return func(d *Discoverer) { d.target = name }
}

// WithCommandTimeout bounds each external command.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithProcRoot sets the procfs mount used for cwd lookups.
func WithProcRoot(root string) Option {
	return func(d *Discoverer) { d.procRoot = root }
}

// WithTerminalCheck replaces the controlling-terminal liveness check.
func WithTerminalCheck(fn func(tty string) bool) Option {
	return func(d *Discoverer) { d.ttyAlive = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Discoverer) { d.logger = l }
}

// NewDiscoverer creates a Discoverer with the given options.
func NewDiscoverer(opts ...Option) *Discoverer {
	d := &Discoverer{
		runner:   ExecRunner{},
		clock:    clock.Real(),
		target:   DefaultTarget,
		timeout:  DefaultCommandTimeout,
		procRoot: DefaultProcRoot,
		ttyAlive: TerminalAlive,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover lists live target processes, sorted by PID. Only a failure to
// read the process table is an error; cwd and start-time lookups that fail
// leave their field empty.
func (d *Discoverer) Discover(ctx context.Context) ([]types.ProcessRecord, error) {
	out, err := d.run(ctx, "ps", "aux")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	var procs []types.ProcessRecord
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		rec, ok := ParseLine(line, d.target)
		if !ok {
			continue
		}
		if !d.ttyAlive(rec.TTY) {
			d.logger.Debug("skipping process with closed terminal", "pid", rec.PID, "tty", rec.TTY)
			continue
		}
		rec.WorkingDirectory = d.workingDir(ctx, rec.PID)
		rec.StartTime = d.startTime(ctx, rec.PID)
		rec.Role = ClassifyRole(line, rec.CommandLine, rec.WorkingDirectory)
		procs = append(procs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan ps output: %w", ErrListFailed, err)
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func (d *Discoverer) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.runner.Run(ctx, name, args...)
}

// workingDir resolves a process's cwd from procfs, falling back to lsof.
func (d *Discoverer) workingDir(ctx context.Context, pid int) string {
	if d.procRoot != "" {
		if cwd, err := os.Readlink(filepath.Join(d.procRoot, strconv.Itoa(pid), "cwd")); err == nil {
			return cwd
		}
	}

	out, err := d.run(ctx, "lsof", "-a", "-d", "cwd", "-p", strconv.Itoa(pid), "-Fn")
	if err != nil {
		d.logger.Debug("cwd lookup failed", "pid", pid, "error", err)
		return ""
	}
	return parseLsofCwd(out)
}

// parseLsofCwd extracts the name field from `lsof -Fn` output.
func parseLsofCwd(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n/") {
			return strings.TrimSpace(line[1:])
		}
	}
	return ""
}

// startTime derives when a process started from its elapsed running time.
// The zero time means unknown.
func (d *Discoverer) startTime(ctx context.Context, pid int) time.Time {
	p := strconv.Itoa(pid)
	if out, err := d.run(ctx, "ps", "-p", p, "-o", "etimes="); err == nil {
		if secs, err := strconv.Atoi(strings.TrimSpace(string(out))); err == nil && secs >= 0 {
			return d.clock.Now().Add(-time.Duration(secs) * time.Second)
		}
	}

	// BSD ps has no etimes column.
	out, err := d.run(ctx, "ps", "-p", p, "-o", "etime=")
	if err != nil {
		d.logger.Debug("start time lookup failed", "pid", pid, "error", err)
		return time.Time{}
	}
	secs, ok := parseElapsed(string(out))
	if !ok {
		return time.Time{}
	}
	return d.clock.Now().Add(-time.Duration(secs) * time.Second)
}

// Package runner executes app lifecycle scripts with bash.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"appkeeper/internal/api"
	"appkeeper/pkg/logging"
	pkgstrings "appkeeper/pkg/strings"
)

const subsystem = "Runner"

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// Runner is the default api.ScriptRunner.
type Runner struct {
	// Shell runs the script. Defaults to /bin/bash.
	Shell string

	// GracePeriod is how long an interrupted script gets between SIGTERM
	// and SIGKILL.
	GracePeriod time.Duration

	// TailLines is how much output is attached as debug context.
	TailLines int
}

var _ api.ScriptRunner = (*Runner)(nil)

// New returns a Runner with defaults.
func New() *Runner {
	return &Runner{Shell: "/bin/bash", GracePeriod: 10 * time.Second, TailLines: pkgstrings.DefaultTailLines}
}

// Run executes req.Path. A nonzero exit is reported in ExitCode with a nil
// error; the error is set when the script cannot start or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, req api.ScriptRequest) (api.ScriptResult, error) {
	if _, err := os.Stat(req.Path); err != nil {
		return api.ScriptResult{ExitCode: -1}, fmt.Errorf("script %s: %w", req.Path, err)
	}

	name, args := r.command(req)
	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = req.Dir
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(req.Path)
	}
	cmd.Env = buildEnv(os.Environ(), req.Env)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.GracePeriod

	out := newLineLogger(filepath.Base(req.Path))
	cmd.Stdout = out
	cmd.Stderr = out

	logging.Debug(subsystem, "Executing %s %s", name, strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	out.flush()

	result := api.ScriptResult{Output: out.String()}
	if ctx.Err() != nil {
		result.ExitCode = -1
		result.Debug = r.debugContext(req, result.Output)
		return result, fmt.Errorf("script %s interrupted: %w", filepath.Base(req.Path), ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %s: %w", req.Path, err)
	}

	logging.Debug(subsystem, "%s exited with %d after %s", filepath.Base(req.Path), result.ExitCode, time.Since(start).Round(time.Millisecond))
	if result.ExitCode != 0 && req.DebugOnFailure {
		result.Debug = r.debugContext(req, result.Output)
	}
	return result, nil
}

func (r *Runner) command(req api.ScriptRequest) (string, []string) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	args := append([]string{req.Path}, req.Args...)
	if req.User == "" || isCurrentUser(req.User) {
		return shell, args
	}
	return "sudo", append([]string{"-n", "-u", req.User, "-E", "--", shell}, args...)
}

func (r *Runner) debugContext(req api.ScriptRequest, output string) string {
	tail := pkgstrings.TailLines(output, r.TailLines)
	if tail == "" {
		return ""
	}
	return fmt.Sprintf("Last lines of %s output:\n%s", filepath.Base(req.Path), tail)
}

func isCurrentUser(name string) bool {
	u, err := user.Current()
	return err == nil && u.Username == name
}

// buildEnv overlays extra on base, in a stable order.
func buildEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[k]; !overridden {
			env = append(env, kv)
		}
	}
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// lineLogger buffers script output and logs it one line at a time.
type lineLogger struct {
	script string

	mu      sync.Mutex
	all     bytes.Buffer
	pending []byte
}

func newLineLogger(script string) *lineLogger {
	return &lineLogger{script: script}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all.Write(p)
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		l.log(string(l.pending[:i]))
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		l.log(string(l.pending))
		l.pending = nil
	}
}

func (l *lineLogger) log(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	logging.Info(subsystem, "[%s] %s", l.script, line)
}

func (l *lineLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.all.String()
}

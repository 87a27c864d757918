package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"appkeeper/internal/catalog"
	"appkeeper/internal/config"
	"appkeeper/internal/drift"
	"appkeeper/internal/fetcher"
	"appkeeper/internal/formatting"
	"appkeeper/internal/health"
	"appkeeper/internal/hooks"
	"appkeeper/internal/messages"
	"appkeeper/internal/oplog"
	"appkeeper/internal/orchestrator"
	"appkeeper/internal/permission"
	"appkeeper/internal/records"
	"appkeeper/internal/runner"
	"appkeeper/internal/ssowat"
	"appkeeper/internal/workdir"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runtime is everything a command needs, built from config.yaml.
type runtime struct {
	orch    *orchestrator.Orchestrator
	journal *oplog.Journal
	units   *health.SystemdUnits
	out     formatting.Formatter
}

func (r *runtime) Close() {
	r.units.Close()
}

// newRuntime wires the orchestrator with the filesystem and systemd backed
// collaborators.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	format, err := formatting.ParseFormat(rootOutputFormat)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return nil, err
	}

	store := records.NewFileStore(cfg.SettingsRoot)
	storage := config.NewStorageWithPath(cfg.DataRoot)
	workdirs := workdir.New(cfg.WorkdirRoot, cfg.WorkdirTTL)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	scripts := runner.New()
	units := &health.SystemdUnits{}
	journal := oplog.New(storage)

	var confirm orchestrator.Confirmer
	if isTerminal(os.Stdin) {
		confirm = readlineConfirm(os.Stdin, cmd.ErrOrStderr())
	}

	orch := orchestrator.New(orchestrator.Config{
		Records:     store,
		Locker:      records.NewLocker(filepath.Join(cfg.DataRoot, "locks")),
		Fetcher:     &progressFetcher{inner: fetcher.New(workdirs, cat), out: cmd.ErrOrStderr(), quiet: rootQuiet},
		Runner:      scripts,
		Health:      health.NewChecker(units, &health.DpkgAuditor{}, cfg.Services),
		Permissions: permission.NewDirectory(storage, store.BaseURL),
		Proxy:       ssowat.NewPublisher(cfg.SSOwatConfPath),
		Domains:     config.NewStaticDomains(cfg),
		Hooks:       hooks.NewRegistry(cfg.HooksRoot, scripts),
		Journal:     journal,
		Workdirs:    workdirs,

		Drift:    drift.NewDetector(cfg.DriftRoots),
		Catalog:  cat,
		Messages: messages.New(cfg.Locale),
		Confirm:  confirm,
		Services: units,
		Packages: cfg.Packages,

		MinFreeSpace: cfg.MinFreeSpaceBytes,
	})

	return &runtime{
		orch:    orch,
		journal: journal,
		units:   units,
		out: formatting.New(formatting.Options{
			Format: format,
			Quiet:  rootQuiet,
			Color:  isTerminal(os.Stdout),
			Out:    cmd.OutOrStdout(),
		}),
	}, nil
}

// commandContext is cancelled on SIGINT or SIGTERM, which interrupts a
// running script and triggers the rollback of an install.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// progressFetcher shows a spinner while a package is downloaded.
type progressFetcher struct {
	inner orchestrator.PackageFetcher
	out   io.Writer
	quiet bool
}

func (p *progressFetcher) Fetch(ctx context.Context, source string) (*fetcher.Package, error) {
	if p.quiet || !isTerminal(os.Stderr) {
		return p.inner.Fetch(ctx, source)
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.out))
	s.Suffix = " Fetching " + source
	s.Start()
	defer s.Stop()
	return p.inner.Fetch(ctx, source)
}

// readlineConfirm asks on the terminal. Ctrl+C and EOF answer no.
func readlineConfirm(in io.ReadCloser, out io.Writer) orchestrator.Confirmer {
	return func(ctx context.Context, prompt string) (bool, error) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          prompt + " ",
			Stdin:           in,
			Stdout:          out,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return false, fmt.Errorf("failed to create readline instance: %w", err)
		}
		defer rl.Close()

		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return confirmed(line), nil
	}
}

// confirmed accepts y, yes and the long form asked for risky packages.
func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "yes, i understand":
		return true
	default:
		return false
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// readValue returns v, or stdin when v is "-".
func readValue(cmd *cobra.Command, v string) (string, error) {
	if v != "-" {
		return v, nil
	}
	var b strings.Builder
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sc.Text())
	}
	return b.String(), sc.Err()
}

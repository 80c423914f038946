package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/folio"
	"github.com/aretw0/folio/internal/bootstrap"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/prompt"
)

const shutdownTimeout = 30 * time.Second

var (
	allowRoot  bool
	showEvents []string
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Open files and resolve external changes until interrupted",
	Long: `Watch opens every file as a document and waits. When another program
changes or removes one of them, folio asks what to do: interactively when
stdin is a terminal, otherwise following --on-modified and --on-removed.
On interrupt every document is checked once more before exiting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
	},
}

func promptHandler(in io.Reader, out io.Writer, logger *slog.Logger) (core.PromptHandler, error) {
	if !cfg.Unattended && isTerminal(in) {
		return prompt.NewTerminal(in, out), nil
	}
	return prompt.NewPolicy(cfg.OnModified, cfg.OnRemoved, logger)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func runWatch(ctx context.Context, in io.Reader, out, errOut io.Writer, files []string) error {
	logger := slog.Default()

	_, err := bootstrap.Run(ctx, bootstrap.Config{
		App:        "folio",
		PluginDirs: cfg.Plugins,
		AllowRoot:  allowRoot,
		Logger:     logger,
		OnWarning:  func(msg string) { fmt.Fprintln(errOut, msg) },
	})
	if err != nil {
		return err
	}

	handler, err := promptHandler(in, out, logger)
	if err != nil {
		return err
	}
	rt, err := folio.New(cfg.options(logger, handler, true)...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(runCtx); err != nil {
		return err
	}

	types := make([]core.EventType, len(showEvents))
	for i, name := range showEvents {
		types[i] = core.EventType(strings.ToUpper(name))
	}
	src := rt.Source(types...)
	if err := src.Start(runCtx); err != nil {
		return err
	}
	lifecycle.Go(runCtx, func(ctx context.Context) error {
		for e := range src.Events() {
			fmt.Fprintln(out, e)
		}
		return nil
	})

	opened := 0
	for _, path := range files {
		if _, err := rt.System.Open(runCtx, path, ""); err != nil {
			logger.Error("failed to open", "path", path, "error", err)
			continue
		}
		opened++
	}
	if opened == 0 {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		_ = rt.Shutdown(shutdownCtx)
		return fmt.Errorf("no document could be opened")
	}

	<-ctx.Done()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	n, err := rt.Watcher.CheckAll(shutdownCtx)
	if err != nil {
		logger.Warn("final check failed", "error", err)
	} else if n > 0 {
		fmt.Fprintf(errOut, "%d document(s) changed on disk\n", n)
		if err := rt.Watcher.WaitSettled(shutdownCtx); err != nil {
			logger.Warn("conflicts left unresolved", "error", err)
		}
	}
	return rt.Shutdown(shutdownCtx)
}

func init() {
	f := watchCmd.Flags()
	f.Duration("debounce", 0, "Quiet period before a change is classified")
	f.String("on-modified", "", "Decision for modified files when not interactive (reload, ignore)")
	f.String("on-removed", "", "Decision for removed files when not interactive (close, close-all)")
	f.Bool("unattended", false, "Never prompt, even on a terminal")
	f.StringSlice("ignore", nil, "Base name patterns whose changes are ignored")
	f.BoolVar(&allowRoot, "allow-root", false, "Do not warn when running as root")
	f.StringSliceVar(&showEvents, "events", nil, "Only print these event types (open, save, reload, close, conflict, resolve)")

	_ = viper.BindPFlag("debounce", f.Lookup("debounce"))
	_ = viper.BindPFlag("on_modified", f.Lookup("on-modified"))
	_ = viper.BindPFlag("on_removed", f.Lookup("on-removed"))
	_ = viper.BindPFlag("unattended", f.Lookup("unattended"))
	_ = viper.BindPFlag("ignore", f.Lookup("ignore"))

	rootCmd.AddCommand(watchCmd)
}

// Package cli implements the shuffle command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shuffle-empire/shuffle/internal/daemon"
	"github.com/shuffle-empire/shuffle/internal/domain"
)

var (
	flagHome    string
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Shuffle Empire progression engine",
	Long: `Shuffle Empire is an idle progression engine. Earn shuffle points by
hand, buy upgrades and generators, and let production accrue in the background.

State lives in ~/.shuffle (override with --home or $SHUFFLE_HOME). Every
command loads the save, credits offline progress, runs, and saves again.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "state directory (default $SHUFFLE_HOME or ~/.shuffle)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <home>/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log engine activity to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ─── Session ────────────────────────────────────────────────────────────────

// loadConfig resolves home and reads the config file.
func loadConfig() (string, daemon.Config, error) {
	home := daemon.Home(flagHome)
	path := flagConfig
	if path == "" {
		path = filepath.Join(home, daemon.ConfigFileName)
	}
	cfg, err := daemon.LoadConfig(path)
	return home, cfg, err
}

// cliLogger keeps one-shot commands quiet unless --verbose.
func cliLogger(cfg daemon.LogConfig) *slog.Logger {
	if !flagVerbose {
		cfg.Level = "warn"
	}
	return daemon.NewLogger(cfg, os.Stderr)
}

// openDaemon builds and loads the engine, printing any offline summary.
func openDaemon(ctx context.Context, out io.Writer, log *slog.Logger) (*daemon.Daemon, error) {
	home, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = cliLogger(cfg.Log)
	}
	d, err := daemon.New(home, cfg, log)
	if err != nil {
		return nil, err
	}
	if _, err := d.Load(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("load save: %w", err)
	}
	if s := d.Engine.TakeOfflineSummary(); s != nil {
		printOffline(out, s)
	}
	return d, nil
}

// withSession loads the engine, runs fn, accrues up to now and saves.
func withSession(cmd *cobra.Command, fn func(d *daemon.Daemon) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openDaemon(ctx, cmd.OutOrStdout(), nil)
	if err != nil {
		return err
	}
	defer d.Close()

	runErr := fn(d)
	d.Engine.Tick(time.Now())
	if err := d.Engine.Save(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return runErr
}

// ─── Formatting ─────────────────────────────────────────────────────────────

// points renders an amount: grouped digits below a million, SI above.
func points(v float64) string {
	if v < 1e6 {
		return humanize.Commaf(float64(int64(v)))
	}
	return strings.TrimSpace(humanize.SIWithDigits(v, 2, ""))
}

// rate renders a rate with up to two decimals.
func rate(v float64) string {
	if v < 1e6 {
		return humanize.CommafWithDigits(v, 2)
	}
	return strings.TrimSpace(humanize.SIWithDigits(v, 2, ""))
}

func printOffline(w io.Writer, s *domain.OfflineProgressSummary) {
	away := time.Duration(s.AwaySeconds * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(w, "🌙 Welcome back! You were away %s (last saved %s).\n", away, humanize.Time(s.SavedAt))
	fmt.Fprintf(w, "   Generators earned %s shuffles at %s/s", points(s.ResourceGained), rate(s.Rate))
	if s.Capped {
		credited := time.Duration(s.ElapsedSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(w, " (capped at %s)", credited)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shuffle-empire/shuffle/internal/daemon"
	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(configCmd)

	statusCmd.Flags().Bool("json", false, "print the raw snapshot as JSON")
	buyCmd.Flags().IntP("count", "n", 1, "levels to buy (stops at the first failure)")
	resetCmd.Flags().Bool("yes", false, "confirm wiping all progress")
	journalCmd.Flags().IntP("limit", "n", 20, "entries to show")
	catalogCmd.Flags().Int("levels", 0, "also print each item's contribution for levels 1..N")
	slotsCmd.Flags().String("delete", "", "delete the named slot")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with live accrual and the HTTP API",
	Long: `Run the engine in the foreground. Generators accrue continuously, the
game is saved periodically and once more on Ctrl+C. When [api] is enabled the
snapshot is served over HTTP, SSE (/api/live) and WebSocket (/ws).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	home, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := daemon.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(home, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()
	if _, err := d.Load(ctx); err != nil {
		return fmt.Errorf("load save: %w", err)
	}
	if s := d.Engine.TakeOfflineSummary(); s != nil {
		printOffline(cmd.OutOrStdout(), s)
	}
	return d.Serve(ctx)
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show balance, rates and item levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withSession(cmd, func(d *daemon.Daemon) error {
			snap := d.Engine.Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printStatus(cmd, snap)
			return nil
		})
	},
}

func printStatus(cmd *cobra.Command, s domain.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Balance:     %s\n", points(s.Balance))
	fmt.Fprintf(out, "Produced:    %s (%.6g%% of a full deck's permutations)\n", points(s.TotalProduced), s.Progress*100)
	fmt.Fprintf(out, "Per click:   %s\n", rate(s.PerActionRate))
	fmt.Fprintf(out, "Per second:  %s\n\n", rate(s.PerTimeUnitRate))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tGROUP\tLEVEL\tCOST\tEFFECT\tNEXT\tSTATUS")
	for _, it := range s.Items {
		cost := points(it.Cost)
		if it.Status == domain.StatusMaxed {
			cost = "max"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t+%s\t%s\n",
			it.Key, it.Group, it.Level, it.MaxLevel, cost,
			rate(it.CurrentEffect), rate(it.NextEffect), it.Status)
	}
	tw.Flush()
}

// ─── click ──────────────────────────────────────────────────────────────────

var clickCmd = &cobra.Command{
	Use:   "click [N]",
	Short: "Shuffle by hand N times (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 1
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("N must be a positive integer, got %q", args[0])
			}
			n = v
		}
		return withSession(cmd, func(d *daemon.Daemon) error {
			var gained float64
			for i := 0; i < n; i++ {
				gained += d.Engine.PerformAction()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🃏 +%s shuffles (%s %s). Balance: %s\n",
				points(gained), humanize.Comma(int64(n)), plural(n, "click", "clicks"),
				points(d.Engine.Snapshot().Balance))
			return nil
		})
	},
}

// ─── buy ────────────────────────────────────────────────────────────────────

var buyCmd = &cobra.Command{
	Use:               "buy ITEM",
	Short:             "Buy one or more levels of an item",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeItems,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		count, _ := cmd.Flags().GetInt("count")
		if count < 1 {
			return fmt.Errorf("--count must be >= 1")
		}
		return withSession(cmd, func(d *daemon.Daemon) error {
			bought := 0
			var err error
			for bought < count {
				if err = d.Engine.Purchase(key); err != nil {
					break
				}
				bought++
			}

			out := cmd.OutOrStdout()
			snap := d.Engine.Snapshot()
			item, _ := snap.Item(key)
			if bought > 0 {
				fmt.Fprintf(out, "✅ Bought %d %s of %s, now level %d. Balance: %s\n",
					bought, plural(bought, "level", "levels"), key, item.Level, points(snap.Balance))
			}
			switch {
			case err == nil:
				return nil
			case errors.Is(err, domain.ErrInsufficientFunds):
				fmt.Fprintf(out, "💸 Not enough shuffles: next level costs %s, you have %s.\n", points(item.Cost), points(snap.Balance))
				if bought > 0 {
					return nil
				}
			case errors.Is(err, domain.ErrMaxLevelReached):
				fmt.Fprintf(out, "🏆 %s is at max level (%d).\n", key, item.MaxLevel)
				if bought > 0 {
					return nil
				}
			case errors.Is(err, domain.ErrUnknownItem):
				return fmt.Errorf("unknown item %q (see 'shuffle catalog')", key)
			}
			return err
		})
	},
}

// completeItems offers catalog keys without opening the save.
func completeItems(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	home, cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath(home))
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var keys []string
	for _, k := range cat.Keys() {
		if strings.HasPrefix(k, toComplete) {
			keys = append(keys, k)
		}
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}

// ─── reset ──────────────────────────────────────────────────────────────────

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset discards every shuffle and level; re-run with --yes to confirm")
		}
		return withSession(cmd, func(d *daemon.Daemon) error {
			d.Engine.ResetAll()
			fmt.Fprintln(cmd.OutOrStdout(), "♻️  Progress reset.")
			return nil
		})
	},
}

// ─── catalog ────────────────────────────────────────────────────────────────

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List purchasable items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		levels, _ := cmd.Flags().GetInt("levels")
		if levels < 0 {
			return fmt.Errorf("--levels must be >= 0")
		}
		return withSession(cmd, func(d *daemon.Daemon) error {
			out := cmd.OutOrStdout()
			cat := d.Engine.Catalog()
			for i, g := range []domain.Group{domain.GroupManual, domain.GroupGenerator} {
				defs := cat.Group(g)
				if len(defs) == 0 {
					continue
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s items\n", g)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tNAME\tKIND\tBASE COST\tGROWTH\tMAX")
				for _, def := range defs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t×%g\t%d\n",
						def.Key, def.Name, def.Kind, points(def.BaseCost), def.CostGrowth, def.MaxLevel)
				}
				tw.Flush()
			}
			if levels > 0 {
				printEffectTable(out, cat.Items(), levels)
			}
			return nil
		})
	},
}

// printEffectTable shows contributions at levels 1..n, stopping at max level.
func printEffectTable(w io.Writer, defs []domain.ItemDef, n int) {
	fmt.Fprintf(w, "\nContribution by level (1..%d)\n", n)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"KEY"}
	for l := 1; l <= n; l++ {
		header = append(header, "L"+strconv.Itoa(l))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, def := range defs {
		table := domain.EffectTable(def, n+1)
		if len(table) < 2 {
			continue
		}
		row := []string{def.Key}
		for _, v := range table[1:] {
			row = append(row, rate(v))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// ─── journal ────────────────────────────────────────────────────────────────

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent purchases, offline gains and resets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withSession(cmd, func(d *daemon.Daemon) error {
			if d.History == nil {
				return fmt.Errorf("the journal needs storage.backend = %q", daemon.BackendSQLite)
			}
			entries, err := d.History.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No journal entries yet.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tTYPE\tITEM\tLEVEL\tAMOUNT\tBALANCE")
			for _, e := range entries {
				sign := "-"
				if e.EntryType == domain.EntryCredit {
					sign = "+"
				}
				level := ""
				if e.Level > 0 {
					level = strconv.Itoa(e.Level)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%s\t%s\n",
					humanize.Time(e.Timestamp), e.Type, e.ItemKey, level, sign, points(e.Amount), points(e.Balance))
			}
			tw.Flush()

			spent, err := d.History.SpentByItem(cmd.Context())
			if err != nil {
				return err
			}
			if len(spent) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nSpent per item")
			tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, key := range d.Engine.Catalog().Keys() {
				if v, ok := spent[key]; ok {
					fmt.Fprintf(tw, "%s\t%s\n", key, points(v))
				}
			}
			return tw.Flush()
		})
	},
}

// ─── slots ──────────────────────────────────────────────────────────────────

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List save slots, or delete one with --delete",
	Long: `List every save slot in the configured backend. The active slot is set
by [storage] slot in config.toml. Deleting a slot also drops its journal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		del, _ := cmd.Flags().GetString("delete")
		return withSession(cmd, func(d *daemon.Daemon) error {
			out := cmd.OutOrStdout()
			if del != "" {
				if err := d.DeleteSlot(cmd.Context(), del); err != nil {
					return err
				}
				fmt.Fprintf(out, "🗑️  Deleted slot %s.\n", del)
				return nil
			}

			slots, err := d.Slots(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tLAST SAVED\tACTIVE")
			for _, s := range slots {
				saved, active := "unknown", ""
				if !s.SavedAt.IsZero() {
					saved = humanize.Time(s.SavedAt)
				}
				if s.Active {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, saved, active)
			}
			return tw.Flush()
		})
	},
}

// ─── config ─────────────────────────────────────────────────────────────────

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return daemon.WriteConfig(cmd.OutOrStdout(), cfg)
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

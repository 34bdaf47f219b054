package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/config"
	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type appFlags struct {
	cfg        config.CLIConfig
	gameConfig string
	dbPath     string
	apiBase    string
	noColor    bool
	log        *slog.Logger
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLIFromEnv()
	app := &appFlags{cfg: cfg}

	root := &cobra.Command{
		Use:          "tycoon",
		Short:        "Turn-based manufacturing tycoon",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if app.noColor || !app.cfg.Color {
				color.NoColor = true
			}
			app.log = newLogger(app.cfg.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&app.gameConfig, "config", cfg.GameConfigPath, "game config YAML file")
	root.PersistentFlags().StringVar(&app.dbPath, "db", cfg.SQLitePath, "local save database")
	root.PersistentFlags().StringVar(&app.apiBase, "api", cfg.APIBaseURL, "API base URL for remote games")
	root.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newPlayCmd(app),
		newSimulateCmd(app),
		newSavesCmd(app),
		newConfigCmd(app),
		newRemoteCmd(app),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func (a *appFlags) loadGameConfig() (game.Config, error) {
	return config.LoadGame(a.gameConfig)
}

func (a *appFlags) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, a.cfg.DatabaseURL, a.dbPath, a.log)
}

// driver is one game the play loop can advance, local or behind the API.
type driver interface {
	Dashboard(ctx context.Context) (game.Dashboard, error)
	Preview(ctx context.Context, d game.Decision) (game.Command, error)
	// Play settles a turn; a nil decision asks the autopilot.
	Play(ctx context.Context, d *game.Decision) (api.TurnResult, error)
	Save(ctx context.Context, name string) error
}

type localDriver struct {
	g     *game.Game
	saves func(ctx context.Context) (store.Store, error)
}

func (l *localDriver) Dashboard(context.Context) (game.Dashboard, error) {
	return l.g.View(), nil
}

func (l *localDriver) Preview(_ context.Context, d game.Decision) (game.Command, error) {
	return l.g.Preview(d), nil
}

func (l *localDriver) Play(ctx context.Context, d *game.Decision) (api.TurnResult, error) {
	decision := l.g.Autopilot()
	if d != nil {
		decision = *d
	}
	report, err := l.g.PlayTurn(ctx, decision)
	if err != nil {
		return api.TurnResult{}, err
	}
	return api.NewTurnResult(report, l.g.View()), nil
}

func (l *localDriver) Save(ctx context.Context, name string) error {
	s, err := l.saves(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Save(ctx, name, l.g.Snapshot())
}

type loopOptions struct {
	autopilot bool
	saveAs    string
	maxTurns  int
	quiet     bool
}

// playLoop runs turns until the game ends, the player quits or maxTurns
// turns were played.
func playLoop(ctx context.Context, drv driver, opts loopOptions) error {
	played := 0
	for {
		d, err := drv.Dashboard(ctx)
		if err != nil {
			return err
		}
		if d.Outcome.Over() {
			renderOutcome(d.Outcome, d)
			return saveIfAsked(ctx, drv, opts.saveAs)
		}
		if opts.maxTurns > 0 && played >= opts.maxTurns {
			printInfo(fmt.Sprintf("Stopped after %d turns.", played))
			return saveIfAsked(ctx, drv, opts.saveAs)
		}
		if !opts.quiet {
			renderDashboard(d)
		}

		var decision *game.Decision
		if !opts.autopilot {
			action, err := promptChoice("Action", []string{"turn", "auto", "save", "quit"}, "turn")
			if err != nil {
				return err
			}
			switch action {
			case "quit":
				return saveIfAsked(ctx, drv, opts.saveAs)
			case "save":
				name := opts.saveAs
				if name == "" {
					if name, err = promptRequired("Save name"); err != nil {
						return err
					}
				}
				if err := drv.Save(ctx, name); err != nil {
					printError(fmt.Sprintf("Save failed: %v", err))
				} else {
					printSuccess(fmt.Sprintf("Saved as %q.", name))
				}
				continue
			case "turn":
				in, err := promptDecision(d)
				if err != nil {
					return err
				}
				cmd, err := drv.Preview(ctx, in)
				if err != nil {
					return err
				}
				if len(cmd.Warnings) > 0 {
					printWarn("Some choices will be adjusted:")
					renderWarnings(cmd.Warnings)
					ok, err := promptConfirm("Play this turn", true)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
				}
				decision = &in
			}
		}

		res, err := drv.Play(ctx, decision)
		if err != nil {
			return err
		}
		played++
		if opts.quiet {
			renderTurnLine(res)
		} else {
			renderTurn(res)
		}
	}
}

func saveIfAsked(ctx context.Context, drv driver, name string) error {
	if name == "" {
		return nil
	}
	if err := drv.Save(ctx, name); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	printSuccess(fmt.Sprintf("Saved as %q.", name))
	return nil
}

func renderTurnLine(res api.TurnResult) {
	st := res.Statement
	fmt.Fprintf(stdout, "turn %3d  sold %5d/%-5d  price %9s  net %12s  cash %12s  q%-2d m%-2d\n",
		res.Turn, st.UnitsSold, st.UnitsDemanded, formatDollars(st.Price), colorizeDollars(st.NetIncome),
		formatMicros(res.Dashboard.Player.CashMicros), res.Dashboard.Player.Quality, res.Dashboard.Player.Marketing)
}

func newPlayCmd(app *appFlags) *cobra.Command {
	var (
		seed      int64
		name      string
		load      string
		saveAs    string
		autopilot bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a local game turn by turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !autopilot && !isInteractive() {
				return errors.New("play needs an interactive terminal; use --autopilot or `tycoon simulate`")
			}
			ctx := cmd.Context()
			g, err := app.newOrLoadGame(ctx, load, seed, cmd.Flags().Changed("seed"), name)
			if err != nil {
				return err
			}
			if saveAs == "" {
				saveAs = load
			}
			drv := &localDriver{g: g, saves: app.openStore}
			return playLoop(ctx, drv, loopOptions{autopilot: autopilot, saveAs: saveAs})
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "world seed (random when unset)")
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&load, "load", "", "continue a saved game")
	cmd.Flags().StringVar(&saveAs, "save", "", "save under this name when leaving")
	cmd.Flags().BoolVar(&autopilot, "autopilot", false, "let the autopilot make every decision")
	return cmd
}

func (a *appFlags) newOrLoadGame(ctx context.Context, load string, seed int64, seeded bool, name string) (*game.Game, error) {
	opts := []game.Option{game.WithLogger(a.log)}
	if name != "" {
		opts = append(opts, game.WithPlayerName(name))
	}
	if load != "" {
		s, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		snap, err := s.Load(ctx, load)
		if err != nil {
			return nil, err
		}
		return game.Restore(snap.Config, snap, opts...)
	}
	cfg, err := a.loadGameConfig()
	if err != nil {
		return nil, err
	}
	if seeded {
		opts = append(opts, game.WithSeed(seed))
	}
	return game.New(cfg, opts...)
}

func newSimulateCmd(app *appFlags) *cobra.Command {
	var (
		seed   int64
		turns  int
		saveAs string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Let the autopilot play a whole game and print each turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := app.newOrLoadGame(ctx, "", seed, cmd.Flags().Changed("seed"), "")
			if err != nil {
				return err
			}
			drv := &localDriver{g: g, saves: app.openStore}
			if asJSON {
				return simulateJSON(ctx, g, turns, cmd.OutOrStdout())
			}
			printInfo(fmt.Sprintf("Seed %d", g.Seed()))
			return playLoop(ctx, drv, loopOptions{autopilot: true, quiet: true, maxTurns: turns, saveAs: saveAs})
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "world seed (random when unset)")
	cmd.Flags().IntVar(&turns, "turns", 0, "stop after this many turns (0 plays to the end)")
	cmd.Flags().StringVar(&saveAs, "save", "", "save the final state under this name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON turn result per line")
	return cmd
}

func simulateJSON(ctx context.Context, g *game.Game, turns int, w io.Writer) error {
	enc := json.NewEncoder(w)
	for played := 0; !g.Outcome().Over() && (turns == 0 || played < turns); played++ {
		report, err := g.PlayTurn(ctx, g.Autopilot())
		if err != nil {
			return err
		}
		if err := enc.Encode(api.NewTurnResult(report, g.View())); err != nil {
			return err
		}
	}
	return nil
}

func newSavesCmd(app *appFlags) *cobra.Command {
	saves := &cobra.Command{
		Use:   "saves",
		Short: "Manage local saved games",
	}
	saves.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved games",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			list, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			renderSaves(list)
			return nil
		},
	})
	saves.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show the standings in a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			standings, err := s.Standings(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderStandings(args[0], standings)
			return nil
		},
	})
	saves.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Deleted %q.", strings.TrimSpace(args[0])))
			return nil
		},
	})
	return saves
}

func newConfigCmd(app *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective game configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadGameConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}

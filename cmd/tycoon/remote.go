package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tycoon/internal/api"
	cl "tycoon/internal/cli"
	"tycoon/internal/game"
	"tycoon/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type remoteDriver struct {
	client  *cl.Client
	sess    cl.RemoteSession
	dataDir string
}

func (r *remoteDriver) Dashboard(ctx context.Context) (game.Dashboard, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	state, err := r.client.GameState(ctx, r.sess.GameID, r.sess.Token)
	if err != nil {
		return game.Dashboard{}, err
	}
	return state.Dashboard, nil
}

func (r *remoteDriver) Preview(ctx context.Context, d game.Decision) (game.Command, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.client.Preview(ctx, r.sess.GameID, r.sess.Token, d)
}

// Play journals the turn before sending it. A turn whose request never got
// an answer stays journaled and is replayed under the same key by resume.
func (r *remoteDriver) Play(ctx context.Context, d *game.Decision) (api.TurnResult, error) {
	cmd := syncq.Command{GameID: r.sess.GameID, Decision: d, IdempotencyKey: uuid.NewString(), QueuedAt: time.Now().UTC()}
	if err := syncq.Push(r.dataDir, cmd); err != nil {
		return api.TurnResult{}, err
	}
	return r.send(ctx, cmd)
}

func (r *remoteDriver) send(ctx context.Context, cmd syncq.Command) (api.TurnResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.client.PlayTurn(ctx, r.sess.GameID, r.sess.Token, cmd.Decision, cmd.IdempotencyKey)
	var apiErr *cl.APIError
	if err != nil && !errors.As(err, &apiErr) {
		return api.TurnResult{}, fmt.Errorf("turn not confirmed, it will be retried on the next remote command: %w", err)
	}
	if ackErr := syncq.Ack(r.dataDir, cmd.IdempotencyKey); ackErr != nil {
		return api.TurnResult{}, ackErr
	}
	return res, err
}

// resume replays the journaled turn of this game, if one is waiting.
func (r *remoteDriver) resume(ctx context.Context) error {
	cmd, ok, err := syncq.Pending(r.dataDir, r.sess.GameID)
	if err != nil || !ok {
		return err
	}
	printWarn("Replaying a turn that was not confirmed by the server.")
	res, err := r.send(ctx, cmd)
	if err != nil {
		var apiErr *cl.APIError
		if errors.As(err, &apiErr) {
			printWarn(fmt.Sprintf("The server rejected it: %s", apiErr.Message))
			return nil
		}
		return err
	}
	renderTurn(res)
	return nil
}

func (r *remoteDriver) Save(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.client.SaveGame(ctx, r.sess.GameID, r.sess.Token, name)
}

func (a *appFlags) remoteDriver() (*remoteDriver, error) {
	sess, err := cl.LoadSession(a.cfg.DataDir)
	if err != nil {
		if errors.Is(err, cl.ErrNoSession) {
			return nil, errors.New("no remote game; start one with `tycoon remote new`")
		}
		return nil, err
	}
	base := sess.BaseURL
	if base == "" {
		base = a.apiBase
	}
	return &remoteDriver{client: cl.NewClient(base), sess: sess, dataDir: a.cfg.DataDir}, nil
}

func (a *appFlags) rememberSession(resp api.SessionResponse) error {
	return cl.SaveSession(a.cfg.DataDir, cl.RemoteSession{
		BaseURL: strings.TrimRight(a.apiBase, "/"),
		GameID:  resp.ID,
		Token:   resp.Token,
	})
}

func newRemoteCmd(app *appFlags) *cobra.Command {
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Play against a tycoon API server",
	}

	var (
		seed int64
		name string
	)
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			req := api.CreateGameRequest{PlayerName: name}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}
			resp, err := cl.NewClient(app.apiBase).CreateGame(ctx, req)
			if err != nil {
				return err
			}
			if err := app.rememberSession(resp); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Game %s started (seed %d).", resp.ID, resp.Seed))
			renderDashboard(resp.Dashboard)
			return nil
		},
	}
	newCmd.Flags().Int64Var(&seed, "seed", 0, "world seed (random when unset)")
	newCmd.Flags().StringVar(&name, "name", "", "company name")

	var autopilot bool
	var turns int
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Continue the remote game",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !autopilot && !isInteractive() {
				return errors.New("remote play needs an interactive terminal; use --autopilot")
			}
			drv, err := app.remoteDriver()
			if err != nil {
				return err
			}
			if err := drv.resume(cmd.Context()); err != nil {
				return err
			}
			return playLoop(cmd.Context(), drv, loopOptions{autopilot: autopilot, quiet: autopilot, maxTurns: turns})
		},
	}
	playCmd.Flags().BoolVar(&autopilot, "autopilot", false, "let the autopilot make every decision")
	playCmd.Flags().IntVar(&turns, "turns", 0, "stop after this many turns (0 plays to the end)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the remote game's dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := app.remoteDriver()
			if err != nil {
				return err
			}
			if err := drv.resume(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			state, err := drv.client.GameState(ctx, drv.sess.GameID, drv.sess.Token)
			if err != nil {
				if cl.IsNotFound(err) {
					_ = cl.ClearSession(app.cfg.DataDir)
					return errors.New("the server no longer has this game; start a new one")
				}
				return err
			}
			if state.Last != nil {
				renderTurn(*state.Last)
			}
			renderDashboard(state.Dashboard)
			if state.Dashboard.Outcome.Over() {
				renderOutcome(state.Dashboard.Outcome, state.Dashboard)
			}
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the remote game on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := app.remoteDriver()
			if err != nil {
				return err
			}
			if err := drv.Save(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Saved as %q on the server.", args[0]))
			return nil
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Continue a game saved on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			resp, err := cl.NewClient(app.apiBase).LoadSave(ctx, args[0])
			if err != nil {
				return err
			}
			if err := app.rememberSession(resp); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Loaded %q as game %s.", args[0], resp.ID))
			renderDashboard(resp.Dashboard)
			return nil
		},
	}

	savesCmd := &cobra.Command{
		Use:   "saves [NAME]",
		Short: "List server saves, or show the standings in one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			client := cl.NewClient(app.apiBase)
			if len(args) == 1 {
				standings, err := client.Standings(ctx, args[0])
				if err != nil {
					return err
				}
				renderStandings(args[0], standings)
				return nil
			}
			list, err := client.ListSaves(ctx)
			if err != nil {
				return err
			}
			renderSaves(list)
			return nil
		},
	}

	endCmd := &cobra.Command{
		Use:   "end",
		Short: "End the remote game and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := app.remoteDriver()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if err := drv.client.EndGame(ctx, drv.sess.GameID, drv.sess.Token); err != nil && !cl.IsNotFound(err) {
				return err
			}
			if err := cl.ClearSession(app.cfg.DataDir); err != nil {
				return err
			}
			printInfo("Remote game ended.")
			return nil
		},
	}

	remote.AddCommand(newCmd, playCmd, statusCmd, saveCmd, loadCmd, savesCmd, endCmd)
	return remote
}

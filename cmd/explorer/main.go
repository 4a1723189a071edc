// Command explorer is a REST client bot that walks a session's actor over
// every open cell it can reach, using bulk moves of up to engine.MaxBulkMoves.
// It is handy for smoke-testing a running server against a scenario.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
)

const sessionFile = ".session"

// Report summarizes one exploration run
type Report struct {
	SessionID string
	Visited   int
	Reachable int
	Moves     int
	Requests  int
}

// Complete reports whether every reachable cell was visited
func (r Report) Complete() bool { return r.Visited >= r.Reachable }

func main() {
	cmd := &cli.Command{
		Name:  "explorer",
		Usage: "visit every reachable cell of a scenario through the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL"},
			&cli.StringFlag{Name: "scenario", Usage: "scenario to explore (server default when empty)"},
			&cli.StringFlag{Name: "continue", Usage: "resume an existing session by ID"},
			&cli.IntFlag{Name: "max-moves", Value: 3000, Usage: "stop after this many moves"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between bulk moves"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("v") {
		log.SetLevel(log.DebugLevel)
	}

	serverURL := cmd.String("url")
	log.Infof("Connecting to game server at %s", serverURL)
	client := NewClient(serverURL)

	sessionID := cmd.String("continue")
	if sessionID == "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			sessionID = string(bytes.TrimSpace(data))
		}
	}

	if sessionID != "" {
		if _, err := client.Resume(ctx, sessionID); err != nil {
			log.WithError(err).Warn("Failed to resume session (may be expired), creating a new one")
			sessionID = ""
		} else {
			log.WithField("session", sessionID).Info("Resumed session")
		}
	}

	if sessionID == "" {
		if _, err := client.CreateSession(ctx, cmd.String("scenario")); err != nil {
			return err
		}
		log.WithField("session", client.SessionID()).Info("Session created")
		if err := os.WriteFile(sessionFile, []byte(client.SessionID()), 0644); err != nil {
			log.WithError(err).Warn("Failed to save session ID")
		}
	}

	report, err := explore(ctx, client, int(cmd.Int("max-moves")), cmd.Duration("delay"))
	if err != nil {
		return err
	}

	fmt.Printf("Session %s: visited %d/%d reachable cells in %d moves (%d requests)\n",
		report.SessionID, report.Visited, report.Reachable, report.Moves, report.Requests)
	if !report.Complete() {
		return cli.Exit("exploration incomplete", 1)
	}
	return nil
}

// explore resets the session and tours it until every reachable cell is
// visited or maxMoves is spent.
func explore(ctx context.Context, client *Client, maxMoves int, delay time.Duration) (Report, error) {
	report := Report{SessionID: client.SessionID()}

	state, err := client.Reset(ctx)
	if err != nil {
		return report, err
	}
	report.Requests++

	explorer, err := NewExplorer(state)
	if err != nil {
		return report, err
	}

	pos := state.Actor.Position()
	report.Reachable = explorer.Reachable(pos)
	log.WithFields(log.Fields{
		"scenario":  state.ScenarioName,
		"start":     fmt.Sprintf("(%d,%d)", pos.Row, pos.Col),
		"reachable": report.Reachable,
	}).Info("Exploring")

	for report.Moves < maxMoves {
		budget := engine.MaxBulkMoves
		if left := maxMoves - report.Moves; left < budget {
			budget = left
		}
		path := explorer.NextMoves(pos, budget)
		if len(path) == 0 {
			break
		}

		result, err := client.BulkMove(ctx, path)
		if err != nil {
			return report, err
		}
		report.Requests++
		report.Moves += result.MovesExecuted
		explorer.Observe(result)
		pos = result.EndPos

		log.WithFields(log.Fields{
			"executed": result.MovesExecuted,
			"end":      fmt.Sprintf("(%d,%d)", pos.Row, pos.Col),
			"visited":  explorer.Visited(),
		}).Debug("Bulk move")

		if result.StopReasonCode != "" {
			log.WithField("reason", result.StopReasonCode).Warn("Bulk move stopped early")
			if result.MovesExecuted == 0 && (result.AttemptedTo == nil || !result.AttemptedTo.Blocking) {
				break
			}
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	report.Visited = explorer.Visited()
	return report, nil
}

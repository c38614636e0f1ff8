package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"digital.vasic.automation/pkg/httpclient"
)

var serverURL string

// remoteCmd groups subcommands that drive a running serve
// instance over its control API.
func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect and control a running server",
	}
	cmd.PersistentFlags().StringVar(&serverURL,
		"server", "http://127.0.0.1:8750",
		"Base URL of the monitoring server")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show orchestrator status",
			RunE:  remoteStatus,
		},
		&cobra.Command{
			Use:   "run [level]",
			Short: "Start a single challenge",
			Args:  cobra.ExactArgs(1),
			RunE:  remoteRun,
		},
		&cobra.Command{
			Use:   "sequence [start] [end]",
			Short: "Start a challenge sequence",
			Args:  cobra.ExactArgs(2),
			RunE:  remoteSequence,
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Pause execution",
			RunE: func(*cobra.Command, []string) error {
				return remoteControl("pause",
					func(
						ctx context.Context,
						c *httpclient.Client,
					) (bool, error) {
						return c.Pause(ctx)
					})
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume execution",
			RunE: func(*cobra.Command, []string) error {
				return remoteControl("resume",
					func(
						ctx context.Context,
						c *httpclient.Client,
					) (bool, error) {
						return c.Resume(ctx)
					})
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop execution",
			RunE: func(*cobra.Command, []string) error {
				return remoteControl("stop",
					func(
						ctx context.Context,
						c *httpclient.Client,
					) (bool, error) {
						return c.Stop(ctx)
					})
			},
		},
	)
	return cmd
}

func remoteClient() (
	*httpclient.Client, context.Context,
	context.CancelFunc,
) {
	ctx, cancel := context.WithTimeout(
		context.Background(), 30*time.Second,
	)
	return httpclient.New(serverURL), ctx, cancel
}

func remoteStatus(*cobra.Command, []string) error {
	c, ctx, cancel := remoteClient()
	defer cancel()

	s, err := c.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("State: %s\n", s.State)
	if s.RunID != "" {
		fmt.Printf("Run:   %s\n", s.RunID)
	}
	if s.CurrentLevel > 0 {
		fmt.Printf("Level: %d\n", s.CurrentLevel)
	}
	fmt.Printf("Done:  %d of %d (%.1f%%)\n",
		s.OverallProgress.Completed,
		s.OverallProgress.Total,
		s.OverallProgress.Percentage,
	)
	for _, ch := range s.Challenges {
		fmt.Printf("  %d. %-24s %s\n",
			ch.Level, ch.Name, ch.Status)
	}
	return nil
}

func remoteRun(_ *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid level %q", args[0])
	}
	return remoteControl("run",
		func(
			ctx context.Context, c *httpclient.Client,
		) (bool, error) {
			return c.StartSingle(ctx, level)
		})
}

func remoteSequence(
	_ *cobra.Command, args []string,
) error {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid start level %q", args[0])
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid end level %q", args[1])
	}
	return remoteControl("sequence",
		func(
			ctx context.Context, c *httpclient.Client,
		) (bool, error) {
			return c.StartSequence(ctx, start, end)
		})
}

func remoteControl(
	name string,
	call func(
		context.Context, *httpclient.Client,
	) (bool, error),
) error {
	c, ctx, cancel := remoteClient()
	defer cancel()

	accepted, err := call(ctx, c)
	if err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("%s rejected by server", name)
	}
	fmt.Printf("%s accepted\n", name)
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/devricklin/slack-merge-gate/internal/mcp"
	"github.com/devricklin/slack-merge-gate/internal/service"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the merge status of a running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := mcp.NewClient(daemonURL()).State(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching state: %w", err)
		}

		if statusJSON {
			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		printState(state)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw state as JSON")
}

func printState(state *service.PopupState) {
	fmt.Printf("Status:    %s\n", state.PopupStatus)
	fmt.Printf("Feed:      %s\n", state.FeedState)
	if state.AppStatus != "" {
		fmt.Printf("App:       %s\n", state.AppStatus)
	}

	if info := state.Status; info != nil {
		fmt.Printf("Channel:   %s\n", info.ChannelName)
		fmt.Printf("Guard:     %s\n", onOff(info.FeatureEnabled))
		merge := "allowed"
		if info.IsMergeDisabled {
			merge = "blocked"
		}
		fmt.Printf("Merge:     %s\n", merge)
		if msg := info.LastSlackMessage; msg != nil {
			source := "ts " + msg.TS
			if msg.IsCanvas() {
				source = "canvas"
			}
			fmt.Printf("Last:      %q (%s)\n", msg.Text, source)
		}
	}

	if state.Countdown.IsCountdownActive {
		left := time.Duration(state.Countdown.TimeLeft) * time.Millisecond
		fmt.Printf("Guard back on in %s\n", left.Round(time.Second))
	}
	fmt.Printf("Messages:  %d stored\n", len(state.Messages))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

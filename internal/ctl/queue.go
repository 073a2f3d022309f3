package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crashgate-systems/crashgate/internal/dispatch"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Event queue commands",
}

var queueInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show ingest stream state",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := dispatch.NewJetStreamDispatcher(cmd.Context(), cfg.NATS.URL, cfg.NATS.StreamName)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer q.Close()

		info, err := q.Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("stream info: %w", err)
		}

		fmt.Printf("Stream:    %s\n", info.Config.Name)
		fmt.Printf("Subjects:  %v\n", info.Config.Subjects)
		fmt.Printf("Messages:  %d\n", info.State.Msgs)
		fmt.Printf("Bytes:     %d\n", info.State.Bytes)
		fmt.Printf("First seq: %d\n", info.State.FirstSeq)
		fmt.Printf("Last seq:  %d\n", info.State.LastSeq)
		fmt.Printf("Consumers: %d\n", info.State.Consumers)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueInfoCmd)
}

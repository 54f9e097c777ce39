package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/weavegraph/weave/graph/pipeline"
	"github.com/weavegraph/weave/graph/remote"
)

var (
	listenHost      string
	listenPort      int
	listenReconnect time.Duration
	listenJSON      bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to a remote event stream",
	Long: `Connects to a running weave remote server and prints every received
lifecycle event until interrupted.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenHost, "host", "127.0.0.1", "server host")
	listenCmd.Flags().IntVar(&listenPort, "port", 8585, "server port")
	listenCmd.Flags().DurationVar(&listenReconnect, "reconnect", 0, "reconnection delay (0 disables reconnecting)")
	listenCmd.Flags().BoolVar(&listenJSON, "json", false, "print events as JSONL instead of text")
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	client := remote.NewClient(remote.ClientConfig{
		Host:              listenHost,
		Port:              listenPort,
		ReconnectionDelay: listenReconnect,
	})
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-client.Events():
			if !ok {
				return nil
			}
			if err := printEvent(event); err != nil {
				return err
			}
		}
	}
}

func printEvent(event pipeline.Event) error {
	data, err := pipeline.Marshal(event)
	if err != nil {
		return err
	}
	if listenJSON {
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("[%s] %s\n", event.Kind(), data)
	return nil
}

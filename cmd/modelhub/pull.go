package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelhub/internal/progress"
)

// pullCmd streams a model pull through a running modelhub server and renders
// progress on the terminal.
func pullCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "pull <model>",
		Short: "Pull a model via a running modelhub server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamAndRender(cmd.Context(), server, "/api/pull", map[string]string{"model": args[0]})
		},
	}
	cmd.Flags().StringVar(&server, "server", envOr("MODELHUB_SERVER", "http://127.0.0.1:8090"), "modelhub server base URL")
	return cmd
}

func updateCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "update <model>",
		Short: "Re-pull an installed model via a running modelhub server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamAndRender(cmd.Context(), server, "/api/update-model", map[string]string{"modelName": args[0]})
		},
	}
	cmd.Flags().StringVar(&server, "server", envOr("MODELHUB_SERVER", "http://127.0.0.1:8090"), "modelhub server base URL")
	return cmd
}

// streamAndRender POSTs the operation, reads the NDJSON stream chunk by
// chunk, and prints one status line per display event. Download progress
// redraws in place; other phases get their own line.
func streamAndRender(ctx context.Context, server, path string, payload map[string]string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	consumer := progress.NewConsumer(newLogger("error"))
	render := func(events []progress.Event) {
		for _, ev := range events {
			if ev.Downloading {
				fmt.Fprintf(os.Stdout, "\r%s", ev.Label)
				continue
			}
			fmt.Fprintf(os.Stdout, "\n%s", ev.Label)
		}
	}

	buf := make([]byte, 32<<10)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			events, cerr := consumer.Feed(buf[:n])
			render(events)
			if cerr != nil {
				fmt.Fprintln(os.Stdout)
				return cerr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			fmt.Fprintln(os.Stdout)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream interrupted: %w", rerr)
		}
	}
	events, cerr := consumer.Close()
	render(events)
	fmt.Fprintln(os.Stdout)
	return cerr
}

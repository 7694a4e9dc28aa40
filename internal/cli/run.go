package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/reprolab/reproagent/internal/rpc"
	agentrpc "github.com/reprolab/reproagent/internal/rpc/agent"
	"github.com/reprolab/reproagent/internal/rpc/connectjson"
)

// NewRunCmd wires the run command to stream report-generation events from the daemon.
func NewRunCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan.json>",
		Short: "Send a research plan to the daemon and stream run events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			planPath := strings.TrimSpace(args[0])
			if planPath == "" {
				return fmt.Errorf("plan path cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sessionID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
			reqBody := rpc.GenerateReportRequest{
				SessionID:     sessionID,
				CorrelationID: sessionID + "-corr",
				PlanPath:      planPath,
			}

			baseURL := daemonURL(cfg.Server.Addr)
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				return runNDJSON(ctx, cmd, baseURL+"/agent/report", reqBody)
			default:
				return runConnect(ctx, cmd, baseURL+agentrpc.ConnectGenerateReportProcedure, reqBody)
			}
		},
	}
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.GenerateReportRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var evt rpc.GenerateReportEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.GenerateReportRequest) error {
	client := connect.NewClient[rpc.GenerateReportStreamRequest, rpc.GenerateReportEvent](
		buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.GenerateReportStreamRequest{Run: &reqBody}); err != nil {
		return err
	}

	// propagate cancellation to the daemon
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.GenerateReportStreamRequest{
			Cancel:        true,
			SessionID:     reqBody.SessionID,
			CorrelationID: reqBody.CorrelationID,
		})
		_ = stream.CloseRequest()
	}()

	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := renderEvent(cmd, *evt); err != nil {
			return err
		}
	}
	_ = stream.CloseRequest()
	return stream.CloseResponse()
}

func renderEvent(cmd *cobra.Command, evt rpc.GenerateReportEvent) error {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case "status":
		fmt.Fprintln(out, evt.Message)
	case "research":
		fmt.Fprintf(out, "[research needed] %s (id=%s)\n", evt.ResearchRequest, evt.ResearchID)
	case "done":
		fmt.Fprintf(out, "[done status=%s iterations=%d artifacts=%d]\n",
			evt.Status, evt.Iterations, len(evt.Artifacts))
		if evt.Report != "" {
			fmt.Fprintln(out, evt.Report)
		}
	case "error":
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

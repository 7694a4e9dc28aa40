package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bufbuild/connect-go"

	"github.com/reprolab/reproagent/internal/observability"
	"github.com/reprolab/reproagent/internal/rpc"
	"github.com/reprolab/reproagent/internal/rpc/connectjson"
)

const ConnectGenerateReportProcedure = "/connect.reproagent.v1.AgentService/GenerateReport"

// NewConnectHandler builds a Connect bidi stream handler for GenerateReport.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectReportHandler{runner: runner, metrics: metrics}
	return ConnectGenerateReportProcedure,
		connect.NewBidiStreamHandler(ConnectGenerateReportProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectReportHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectReportHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.GenerateReportStreamRequest, rpc.GenerateReportEvent]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		h.metrics.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Run == nil {
		h.metrics.RecordTransportError("connect", "missing_run")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include run payload"))
	}

	req := *first.Run
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	if req.CorrelationID == "" {
		req.CorrelationID = req.SessionID + "-corr"
	}

	// listen for client-side cancellation
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	events, runErr := h.runner.Run(ctx, req)
	if runErr != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInvalidArgument, runErr)
	}

	for ev := range events {
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			return err
		}
	}
	return nil
}

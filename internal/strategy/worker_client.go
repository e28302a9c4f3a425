package strategy

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"bitget-trader/pkg/exchanges/bitget"
)

const workerMethod = "/strategyworker.StrategyService/Evaluate"

// WorkerClient asks an external strategy worker for a signal over gRPC. The
// wire contract is a struct in both directions, so workers in any language
// can join without a shared schema build.
type WorkerClient struct {
	name    string
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewWorkerClient(name, addr string) (*WorkerClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("worker dial %s: %w", addr, err)
	}
	return &WorkerClient{name: name, conn: conn, timeout: 2 * time.Second}, nil
}

func (w *WorkerClient) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

func (w *WorkerClient) Name() string { return w.name }

// GenerateSignal forwards the candle window to the worker and translates the
// response back into a Signal. Worker errors surface as no signal; the
// decision pass must not stall on a flaky sidecar.
func (w *WorkerClient) GenerateSignal(symbol string, candles []bitget.Candle) *Signal {
	if len(candles) == 0 {
		return nil
	}

	req, err := workerRequest(symbol, candles)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := w.conn.Invoke(ctx, workerMethod, req, resp); err != nil {
		return nil
	}
	return signalFromStruct(w.name, symbol, resp)
}

func workerRequest(symbol string, candles []bitget.Candle) (*structpb.Struct, error) {
	rows := make([]any, len(candles))
	for i, c := range candles {
		rows[i] = map[string]any{
			"ts":     float64(c.Timestamp.UnixMilli()),
			"open":   c.Open,
			"high":   c.High,
			"low":    c.Low,
			"close":  c.Close,
			"volume": c.Volume,
		}
	}
	return structpb.NewStruct(map[string]any{
		"symbol":  symbol,
		"candles": rows,
	})
}

func signalFromStruct(name, symbol string, s *structpb.Struct) *Signal {
	fields := s.GetFields()
	direction := fields["direction"].GetStringValue()
	switch direction {
	case DirectionLong, DirectionShort, DirectionClose:
	default:
		return nil
	}
	return &Signal{
		Symbol:     symbol,
		Strategy:   name,
		Direction:  direction,
		EntryPrice: fields["entry_price"].GetNumberValue(),
		StopLoss:   fields["stop_loss"].GetNumberValue(),
		TakeProfit: fields["take_profit"].GetNumberValue(),
		Confidence: fields["confidence"].GetNumberValue(),
		Reason:     fields["reason"].GetStringValue(),
		Timestamp:  time.Now(),
	}
}

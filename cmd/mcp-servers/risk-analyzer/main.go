package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/metrics"
)

const serverName = "risk-analyzer"

// Tool names
const (
	ToolWeightedRisk = "weighted_portfolio_risk"
	ToolAdvancedRisk = "advanced_portfolio_risk"
	ToolVaR          = "calculate_var"
	ToolAnalyze      = "analyze_portfolio"
	ToolSimulate     = "simulate_portfolio_change"
	ToolForecast     = "predict_risk_trend"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	config.InitLoggerWithConfig(config.LoggerConfig{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		Output: os.Stderr,
	})
	logger := config.NewMCPLogger(serverName)
	logger.Info().Msg("Risk Analyzer MCP Server starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, backends := engine.Connect(ctx, cfg, serverName)
	defer backends.Close()

	server := newServer(svc, cfg.App.Version, logger)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}

	logger.Info().Msg("Client disconnected")
}

// newServer registers the risk tools on a new MCP server
func newServer(svc *engine.Service, version string, logger zerolog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolWeightedRisk,
		Description: "Value-weighted portfolio risk with per-position weights and contributions",
	}, handler(ToolWeightedRisk, logger, svc.WeightedRisk))

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolAdvancedRisk,
		Description: "Correlation-aware portfolio volatility, weighted beta and composite risk. " +
			"Set enrich_returns to load missing return series from price history.",
	}, handler(ToolAdvancedRisk, logger, svc.AdvancedRisk))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolVaR,
		Description: "Historical Value at Risk and Conditional VaR (expected shortfall) of a return series",
	}, handler(ToolVaR, logger, svc.TailRisk))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyze,
		Description: "High-risk share, sector distribution, diversification score and suggestions",
	}, handler(ToolAnalyze, logger, svc.Analyze))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSimulate,
		Description: "Risk before and after adding or removing a position",
	}, handler(ToolSimulate, logger, svc.Simulate))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolForecast,
		Description: "Linear extrapolation of a risk history with a warning when risk is expected to rise",
	}, handler(ToolForecast, logger, svc.Forecast))

	return server
}

// handler adapts an engine operation to a tool handler returning the result as JSON text
func handler[In, Out any](name string, logger zerolog.Logger, op func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error) {
		start := time.Now()
		defer func() { metrics.RecordMCPToolCall(name, time.Since(start)) }()

		logger.Debug().Str("tool", name).Msg("Tool called")

		result, err := op(ctx, input)
		if err != nil {
			logger.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, nil, err
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil, nil
	}
}

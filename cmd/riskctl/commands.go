package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/engine"
	"github.com/finover/riskengine/internal/events"
)

const source = "riskctl"

// options are the flags shared by every subcommand
type options struct {
	configPath string
	file       string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Portfolio risk analytics from the command line",
		Long: `riskctl runs the risk engine on a request read from a YAML or JSON file
and prints the result as indented JSON.

Examples:
  riskctl risk -f portfolio.yaml
  riskctl analyze -f portfolio.json
  cat history.yaml | riskctl forecast
  riskctl forecast --portfolio growth --periods 3
  riskctl watch --type trend_warning`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "-", "Request file (YAML or JSON), - for stdin")

	root.AddCommand(
		operationCmd(opts, "risk", "Value-weighted portfolio risk", (*engine.Service).WeightedRisk),
		operationCmd(opts, "advanced", "Correlation-aware portfolio risk", (*engine.Service).AdvancedRisk),
		operationCmd(opts, "analyze", "Concentration and diversification analysis", (*engine.Service).Analyze),
		operationCmd(opts, "simulate", "Risk change of adding or removing a position", (*engine.Service).Simulate),
		operationCmd(opts, "var", "Value at Risk and Conditional VaR of a return series", (*engine.Service).TailRisk),
		forecastCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)

	return root
}

// operationCmd builds a subcommand that decodes Req from the input, runs op and prints the result
func operationCmd[Req, Res any](opts *options, use, short string, op func(*engine.Service, context.Context, Req) (Res, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req Req
			if err := readRequest(cmd.InOrStdin(), opts.file, &req); err != nil {
				return err
			}

			svc, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := op(svc, cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func forecastCmd(opts *options) *cobra.Command {
	var (
		portfolioID string
		periods     int
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Linear risk trend forecast",
		Long: `Forecast future risk from a history read from the input, or from the
history recorded for a portfolio when --portfolio is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req engine.ForecastRequest
			if portfolioID == "" {
				if err := readRequest(cmd.InOrStdin(), opts.file, &req); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("periods") {
				req.ForecastPeriods = &periods
			}

			svc, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if portfolioID != "" {
				trend, err := svc.ForecastPortfolio(cmd.Context(), portfolioID, req.ForecastPeriods)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), trend)
			}

			trend, err := svc.Forecast(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), trend)
		},
	}

	cmd.Flags().StringVar(&portfolioID, "portfolio", "", "Forecast the stored history of this portfolio")
	cmd.Flags().IntVar(&periods, "periods", 0, "Number of periods to forecast (default from config)")

	return cmd
}

func watchCmd(opts *options) *cobra.Command {
	var alertType string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print risk alerts as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			subscriber, err := events.NewPublisher(events.PublisherConfig{
				NATSURL: cfg.NATS.URL,
				Prefix:  cfg.NATS.SubjectPrefix,
				Name:    source,
			})
			if err != nil {
				return err
			}
			defer func() { _ = subscriber.Close() }()

			out := cmd.OutOrStdout()
			sub, err := subscriber.Subscribe(events.AlertType(alertType), func(alert *events.Alert) error {
				return json.NewEncoder(out).Encode(alert)
			})
			if err != nil {
				return err
			}
			defer func() { _ = sub.Unsubscribe() }()

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&alertType, "type", "", "Alert type to watch (suggestion, trend_warning, risk_increase); all when empty")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetVersion())
		},
	}
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	config.InitLoggerWithConfig(config.LoggerConfig{
		Level:  cfg.App.LogLevel,
		Format: "console",
		Output: os.Stderr,
	})
	return cfg, nil
}

func (o *options) connect(ctx context.Context) (*engine.Service, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, backends := engine.Connect(ctx, cfg, source)
	return svc, backends.Close, nil
}

// readRequest decodes a JSON or YAML request from path, or from stdin when path is "-"
func readRequest(stdin io.Reader, path string, dest interface{}) error {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty request")
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, dest); err != nil {
			return fmt.Errorf("invalid JSON request: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("invalid YAML request: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

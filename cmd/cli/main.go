package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gonbs/adapters/excel"
	"gonbs/app"
	"gonbs/internal/config"
	"gonbs/internal/logging"
	"gonbs/internal/tfce"
)

func main() {
	_ = godotenv.Load()

	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "gonbs",
		Short: "Network-based statistics on connectivity matrices",
		Long: `Fit edge-wise linear models, enhance connectivity graphs with TFCE and
derive permutation p-values from CSV or Excel inputs.

Node indices in edge-list files are 1-based. Defaults for dh, H, E, the
enhancement method and alpha are read from the same NBS_* environment
variables as the API server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	newService := func() (*app.Service, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		settings := app.Settings{
			Params:  cfg.TFCE.Params(),
			Method:  tfce.Method(cfg.TFCE.Method),
			Alpha:   cfg.Inference.Alpha,
			Options: cfg.Inference.Options(),
		}
		return app.NewService(nil, logging.New(logLevel), settings), nil
	}

	rootCmd.AddCommand(
		newGLMCmd(newService),
		newTFCECmd(newService),
		newSparseTFCECmd(newService),
		newClustersCmd(newService),
		newNetworkCmd(newService),
		newComponentsCmd(newService),
		newPipelineCmd(newService),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type serviceFactory func() (*app.Service, error)

// paramFlags binds optional overrides of the configured sweep parameters.
type paramFlags struct {
	dh, h, e float64
	extent   string
}

func (f *paramFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.dh, "dh", 0, "Threshold step (configured value when unset)")
	cmd.Flags().Float64Var(&f.h, "h", 0, "Height exponent H (configured value when unset)")
	cmd.Flags().Float64Var(&f.e, "e", 0, "Extent exponent E (configured value when unset)")
	cmd.Flags().StringVar(&f.extent, "extent", "edges", "Cluster extent unit: edges|nodes")
}

func (f *paramFlags) resolve(cmd *cobra.Command, defaults tfce.Params) (*tfce.Params, error) {
	p := defaults
	if cmd.Flags().Changed("dh") {
		p.DH = f.dh
	}
	if cmd.Flags().Changed("h") {
		p.H = f.h
	}
	if cmd.Flags().Changed("e") {
		p.E = f.e
	}
	switch f.extent {
	case "edges":
		p.Extent = tfce.ExtentEdges
	case "nodes":
		p.Extent = tfce.ExtentNodes
	default:
		return nil, fmt.Errorf("unknown extent %q (use edges or nodes)", f.extent)
	}
	return &p, nil
}

// printJSON writes v to stdout, indented.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseFloats parses a comma separated list such as "1,-1,0".
func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for k, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", part, err)
		}
		out[k] = v
	}
	return out, nil
}

// parseIndices parses 1-based comma separated indices and returns them 0-based.
func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for k, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", part, err)
		}
		if v < 1 {
			return nil, fmt.Errorf("index %d is not 1-based", v)
		}
		out[k] = v - 1
	}
	return out, nil
}

func writeVector(path string, v []float64) error {
	rows := make([][]float64, len(v))
	for k, x := range v {
		rows[k] = []float64{x}
	}
	return excel.WriteTable(path, rows)
}

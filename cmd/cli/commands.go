package main

import (
	"github.com/spf13/cobra"

	"gonbs/adapters/excel"
	"gonbs/app"
	"gonbs/domain/nbs"
	"gonbs/internal/tfce"
)

func newGLMCmd(newService serviceFactory) *cobra.Command {
	var contrast, nuisance, test, out string

	cmd := &cobra.Command{
		Use:   "glm [design-file] [response-file]",
		Short: "Fit a general linear model per response column",
		Long: `Fit every column of the response table against the design table and
report a t or F statistic per column with parametric p-values.

Example: gonbs glm design.csv edges.xlsx --contrast 0,1,-1 --test ttest
         gonbs glm design.csv edges.csv --contrast 0,1,1 --test ftest --nuisance 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := excel.NewDataReader(args[0]).ReadDense()
			if err != nil {
				return err
			}
			y, err := excel.NewDataReader(args[1]).ReadDense()
			if err != nil {
				return err
			}
			c, err := parseFloats(contrast)
			if err != nil {
				return err
			}
			nuis, err := parseIndices(nuisance)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			res, err := svc.FitGLM(cmd.Context(), nbs.Design{X: x, Y: y, Contrast: c, Kind: nbs.TestKind(test), Nuisance: nuis})
			if err != nil {
				return err
			}
			if out != "" {
				return excel.WriteTable(out, [][]float64{res.Statistic, res.PValues})
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVar(&contrast, "contrast", "", "Contrast weights, one per design column")
	cmd.Flags().StringVar(&test, "test", string(nbs.TestTTest), "Test kind: onesample|ttest|ftest")
	cmd.Flags().StringVar(&nuisance, "nuisance", "", "1-based nuisance design columns for the partial F-test")
	cmd.Flags().StringVar(&out, "out", "", "Write statistic and p-value rows to a .csv or .xlsx file")
	_ = cmd.MarkFlagRequired("contrast")
	return cmd
}

func newTFCECmd(newService serviceFactory) *cobra.Command {
	var method, out string
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "tfce [matrix-file]",
		Short: "Enhance a symmetric connectivity matrix",
		Long: `Apply threshold-free cluster enhancement to a square weighted matrix.

Example: gonbs tfce tstat.csv --method exact --h 2 --e 0.5 --out enhanced.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := excel.NewDataReader(args[0]).ReadMatrix()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			p, err := pf.resolve(cmd, svc.Settings().Params)
			if err != nil {
				return err
			}
			res, err := svc.Enhance(cmd.Context(), m, tfce.Method(method), p)
			if err != nil {
				return err
			}
			if out != "" {
				return excel.WriteTable(out, res.Matrix.Rows())
			}
			return printJSON(res.Matrix.Rows())
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "Enhancement: dense|exact|reference|none (empty uses the configured method)")
	cmd.Flags().StringVar(&out, "out", "", "Write the enhanced matrix to a .csv or .xlsx file")
	pf.bind(cmd)
	return cmd
}

func newSparseTFCECmd(newService serviceFactory) *cobra.Command {
	var nodes int
	var out string
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "sparse-tfce [edges-file]",
		Short: "Per-node TFCE scores from an I,J,V edge list",
		Long: `Run the TFCE sweep on a coordinate edge list. Rows are I,J,V with
1-based node indices.

Example: gonbs sparse-tfce edges.csv --nodes 90 --extent nodes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			el, err := excel.NewDataReader(args[0]).ReadEdgeList()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			p, err := pf.resolve(cmd, svc.Settings().Params)
			if err != nil {
				return err
			}
			res, err := svc.SparseTFCE(cmd.Context(), el, nodes, p)
			if err != nil {
				return err
			}
			if out != "" {
				return writeVector(out, res.Scores)
			}
			return printJSON(res.Scores)
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 0, "Number of nodes in the graph")
	cmd.Flags().StringVar(&out, "out", "", "Write node scores to a .csv or .xlsx file")
	_ = cmd.MarkFlagRequired("nodes")
	pf.bind(cmd)
	return cmd
}

func newClustersCmd(newService serviceFactory) *cobra.Command {
	var nodes int

	cmd := &cobra.Command{
		Use:   "clusters [edges-file]",
		Short: "Component node counts from an I,J edge list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			el, err := excel.NewDataReader(args[0]).ReadEdgeList()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			res, err := svc.SparseClusters(cmd.Context(), el.I, el.J, nodes)
			if err != nil {
				return err
			}
			return printJSON(res.Sizes)
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 0, "Number of nodes in the graph")
	_ = cmd.MarkFlagRequired("nodes")
	return cmd
}

func newNetworkCmd(newService serviceFactory) *cobra.Command {
	var alpha float64

	cmd := &cobra.Command{
		Use:   "network [stats-file] [permutations-file] [labels-file]",
		Short: "Network-constrained permutation p-values",
		Long: `Sum edge statistics within each labelled network and compare the sums
with the permutation bank. The permutations file holds one replicate per
column, rows in the same edge order as the statistics.

Example: gonbs network stats.csv perms.xlsx labels.csv --alpha 0.05`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := excel.NewDataReader(args[0]).ReadVector()
			if err != nil {
				return err
			}
			bank, err := excel.NewDataReader(args[1]).ReadBank()
			if err != nil {
				return err
			}
			labels, err := excel.NewDataReader(args[2]).ReadLabels()
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			res, err := svc.NetworkPValues(cmd.Context(), stats, bank, labels, alpha)
			if err != nil {
				return err
			}
			return printJSON(res.NetworkResult)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", 0, "FDR level (0 uses the configured alpha)")
	return cmd
}

func newComponentsCmd(newService serviceFactory) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "components [observed-file] [permutation-files...]",
		Short: "Max-component p-values for a thresholded adjacency matrix",
		Long: `Compare the edge count of every observed component with the largest
component of each permuted adjacency matrix.

Example: gonbs components observed.csv perm_*.csv --out pvalues.xlsx`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			observed, err := excel.NewDataReader(args[0]).ReadMatrix()
			if err != nil {
				return err
			}
			bank := make([]nbs.Matrix, 0, len(args)-1)
			for _, path := range args[1:] {
				m, err := excel.NewDataReader(path).ReadMatrix()
				if err != nil {
					return err
				}
				bank = append(bank, m)
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			res, err := svc.MaxComponentPValues(cmd.Context(), observed, bank)
			if err != nil {
				return err
			}
			if out != "" {
				return excel.WriteTable(out, res.PValues.Rows())
			}
			return printJSON(map[string]interface{}{
				"pvalues":   res.PValues.Rows(),
				"statistic": res.Statistic.Rows(),
				"null":      res.Null,
				"summary":   res.Summary,
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the p-value matrix to a .csv or .xlsx file")
	return cmd
}

func newPipelineCmd(newService serviceFactory) *cobra.Command {
	var method, labelsFile, out string
	var alpha float64
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "pipeline [stats-file] [permutations-file]",
		Short: "Enhance an edge statistic and its permutations, then derive FWER p-values",
		Long: `Run the full inference chain on an upper-triangle edge statistic: enhance
the observed vector and every permutation replicate with the same method,
then compute max-statistic FWER p-values per edge.

Example: gonbs pipeline tstat.csv perms.xlsx --method dense --labels networks.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := excel.NewDataReader(args[0]).ReadVector()
			if err != nil {
				return err
			}
			bank, err := excel.NewDataReader(args[1]).ReadBank()
			if err != nil {
				return err
			}
			req := app.PipelineRequest{Statistic: stats, Bank: bank, Method: tfce.Method(method), Alpha: alpha}
			if labelsFile != "" {
				if req.Labels, err = excel.NewDataReader(labelsFile).ReadLabels(); err != nil {
					return err
				}
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			if req.Params, err = pf.resolve(cmd, svc.Settings().Params); err != nil {
				return err
			}
			res, err := svc.RunPipeline(cmd.Context(), req)
			if err != nil {
				return err
			}
			if out != "" {
				return excel.WriteTable(out, [][]float64{res.Enhanced, res.PValues})
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "Enhancement: dense|exact|reference|none")
	cmd.Flags().StringVar(&labelsFile, "labels", "", "Per-edge network labels for network-constrained inference")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "FDR level (0 uses the configured alpha)")
	cmd.Flags().StringVar(&out, "out", "", "Write enhanced and p-value rows to a .csv or .xlsx file")
	pf.bind(cmd)
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/internal/settings"
	"yashubustudio/bioscan/report"
)

type analyzeOptions struct {
	queryPath     string
	sequence      string
	receptor      string
	receptorsFile string
	format        string
	outputPath    string
	metricsOut    string
	timeout       time.Duration
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rank receptors by similarity to a query sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.analyze(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.queryPath, "query", "q", "", `FASTA or text file holding the query ("-" reads stdin)`)
	f.StringVarP(&opts.sequence, "sequence", "s", "", "query sequence given inline")
	f.StringVarP(&opts.receptor, "receptor", "r", "", "compare against one receptor instead of all")
	f.StringVar(&opts.receptorsFile, "receptors-file", "", "multi-record FASTA whose records are added to the registry")
	f.StringVarP(&opts.format, "format", "f", "", "output format: table, csv, json or pdf (default from --output, else table)")
	f.StringVarP(&opts.outputPath, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "abort the analysis after this long")
	return cmd
}

func (c *cli) analyze(cmd *cobra.Command, opts analyzeOptions) error {
	raw, err := readQuery(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	format, err := resolveFormat(opts.format, opts.outputPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	promReg := prometheus.NewRegistry()
	metrics := bioscan.NewMetrics(promReg)
	if opts.metricsOut != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(opts.metricsOut, promReg); err != nil {
				c.printer.Warning("write metrics: %v", err)
			}
		}()
	}

	registry, err := settings.NewRegistry(c.cfg, metrics)
	if err != nil {
		return err
	}
	if opts.receptorsFile != "" {
		entries, err := bioscan.LoadReceptorFile(opts.receptorsFile)
		if err != nil {
			return err
		}
		if err := registry.AddAll(entries); err != nil {
			return fmt.Errorf("register receptors: %w", err)
		}
		c.logger.Info("receptors registered", "file", opts.receptorsFile, "count", len(entries))
	}

	embedder, err := settings.NewEmbedder(c.cfg, c.logger, metrics)
	if err != nil {
		return err
	}
	defer embedder.Close()
	if loader, ok := embedder.(bioscan.Loader); ok {
		c.printer.Info("Loading model %s ...", embedder.ModelID())
		if err := loader.Load(ctx); err != nil {
			return err
		}
	}

	analyzer, err := bioscan.NewAnalyzer(registry, embedder,
		bioscan.WithAnalyzerLogger(c.logger),
		bioscan.WithAnalyzerMetrics(metrics),
	)
	if err != nil {
		return err
	}
	sel := bioscan.SelectAll()
	if opts.receptor != "" {
		sel = bioscan.SelectReceptor(opts.receptor)
	}
	res, err := analyzer.Analyze(ctx, raw, sel)
	if err != nil {
		return err
	}
	c.printer.Success("Analyzed %d residues against %s in %s", len(res.Query), sel, res.Elapsed.Round(time.Millisecond))

	if opts.outputPath != "" {
		path := report.ResolvePath(c.cfg.ReportDir, opts.outputPath)
		if err := saveReport(path, format, res); err != nil {
			return err
		}
		c.printer.Success("Report saved to %s", path)
		return nil
	}
	return writeReport(cmd.OutOrStdout(), format, res)
}

func readQuery(stdin io.Reader, opts analyzeOptions) (string, error) {
	switch {
	case opts.sequence != "" && opts.queryPath != "":
		return "", errors.New("use either --query or --sequence, not both")
	case opts.sequence != "":
		return opts.sequence, nil
	case opts.queryPath == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case opts.queryPath != "":
		return bioscan.ReadSequenceFile(opts.queryPath)
	default:
		return "", errors.New("missing required --query file or --sequence")
	}
}

const formatJSON report.Format = "json"

func resolveFormat(name, outputPath string) (report.Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		if outputPath == "" {
			return report.FormatTable, nil
		}
		if strings.EqualFold(filepath.Ext(outputPath), ".json") {
			return formatJSON, nil
		}
		return report.FormatFromPath(outputPath)
	case string(report.FormatTable), string(report.FormatCSV), string(report.FormatPDF), string(formatJSON):
		return report.Format(name), nil
	default:
		return "", fmt.Errorf("unknown format %q: want table, csv, json or pdf", name)
	}
}

func writeReport(w io.Writer, format report.Format, res bioscan.Result) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return report.Write(w, format, res)
}

func saveReport(path string, format report.Format, res bioscan.Result) error {
	if format == formatJSON {
		return report.WriteFile(path, func(w io.Writer) error {
			return writeReport(w, format, res)
		})
	}
	return report.SaveFile(path, format, res)
}

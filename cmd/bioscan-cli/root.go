package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/internal/settings"
)

// cli carries state shared by subcommands after the root pre-run.
type cli struct {
	configPath string
	envFile    string
	verbose    bool
	noColor    bool

	cfg     bioscan.Config
	logger  *slog.Logger
	printer *printer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "bioscan-cli",
		Short: "Protein receptor affinity screening",
		Long: `bioscan-cli embeds a protein query with a protein language model and ranks
reference receptors by cosine similarity.

Example usage:
  bioscan-cli analyze --query spike.fasta               # rank every receptor
  bioscan-cli analyze --query - --receptor "Receptor CD4" < spike.fasta
  bioscan-cli analyze --query spike.fasta --output report.pdf
  bioscan-cli receptors                                 # list the registry`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is ./config.json or $BIOSCAN_CONFIG)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "optional dotenv file with BIOSCAN_* overrides")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newAnalyzeCmd(c), newReceptorsCmd(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := settings.Load(c.configPath, c.envFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	c.logger = settings.NewLogger(cmd.ErrOrStderr(), level)
	c.printer = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !c.noColor)
	c.logger.Debug("configuration loaded",
		"embedder", cfg.Embedder.Kind,
		"model", cfg.Embedder.ModelPath,
		"cache_dir", cfg.Embedder.CacheDir,
		"seeds", cfg.SeedsPath,
	)
	return nil
}

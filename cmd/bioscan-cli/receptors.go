package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"yashubustudio/bioscan/bioscan"
	"yashubustudio/bioscan/internal/settings"
)

func newReceptorsCmd(c *cli) *cobra.Command {
	var receptorsFile string
	cmd := &cobra.Command{
		Use:   "receptors",
		Short: "List the receptors available for comparison",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := settings.NewRegistry(c.cfg, nil)
			if err != nil {
				return err
			}
			if receptorsFile != "" {
				entries, err := bioscan.LoadReceptorFile(receptorsFile)
				if err != nil {
					return err
				}
				if err := registry.AddAll(entries); err != nil {
					return err
				}
			}
			all := registry.All()
			rows := make([][]string, len(all))
			for i, e := range all {
				rows[i] = []string{e.Name, strconv.Itoa(len(e.Sequence))}
			}
			return c.printer.Table([]string{"Receptor", "Residues"}, rows)
		},
	}
	cmd.Flags().StringVar(&receptorsFile, "receptors-file", "", "multi-record FASTA added to the listing")
	return cmd
}

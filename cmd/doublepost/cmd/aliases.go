package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"doublepost/cmd/doublepost/config"
	"doublepost/internal/aliases"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var findThreshold float64

// aliasesCmd groups the alias store subcommands.
var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manage merchant aliases",
	Long: `Aliases map messy processor strings to canonical merchant names, so
"AMZN Mktp US*2G4" and "Amazon.com" reconcile as the same merchant.

Examples:
  doublepost aliases add "AMZN Mktp US*2G4" "Amazon"
  doublepost aliases list
  doublepost aliases find "amzn mktp" --threshold 0.6
  doublepost aliases delete "AMZN Mktp US*2G4"`,
}

var aliasesAddCmd = &cobra.Command{
	Use:   "add <alias> <primary-name>",
	Short: "Add or update an alias mapping",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAliasStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Add(args[0], args[1]); err != nil {
			return err
		}

		fmt.Printf("Alias %q -> %q saved\n", args[0], args[1])
		return nil
	},
}

var aliasesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List aliases by usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAliasStore()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No aliases stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ALIAS\tPRIMARY NAME\tUSED\tCREATED")
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.Alias, a.PrimaryName, a.UsageCount, a.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var aliasesDeleteCmd = &cobra.Command{
	Use:   "delete <alias>",
	Short: "Delete an alias mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAliasStore()
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if deleted {
			fmt.Printf("Alias %q deleted\n", args[0])
		} else {
			fmt.Printf("No alias %q found\n", args[0])
		}
		return nil
	},
}

var aliasesFindCmd = &cobra.Command{
	Use:   "find <description>",
	Short: "Find aliases similar to a description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAliasStore()
		if err != nil {
			return err
		}
		defer store.Close()

		hits, err := store.FindSimilar(args[0], findThreshold)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No similar aliases found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SIMILARITY\tALIAS\tPRIMARY NAME")
		for _, hit := range hits {
			fmt.Fprintf(w, "%.2f\t%s\t%s\n", hit.Similarity, hit.Alias.Alias, hit.Alias.PrimaryName)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
	aliasesCmd.AddCommand(aliasesAddCmd)
	aliasesCmd.AddCommand(aliasesListCmd)
	aliasesCmd.AddCommand(aliasesDeleteCmd)
	aliasesCmd.AddCommand(aliasesFindCmd)

	aliasesFindCmd.Flags().Float64Var(&findThreshold, "threshold", 0.6, "minimum similarity in [0, 1]")
}

func openAliasStore() (*aliases.Store, error) {
	dbPath, err := config.AliasDBPath(viper.GetString("aliases-db"))
	if err != nil {
		return nil, err
	}
	return aliases.Open(dbPath)
}

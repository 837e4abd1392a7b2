package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/filearchive/internal/archive"
)

var showEntry bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <hash> [rendition]",
	Short: "Print the stored path of a rendition (0 master, 1 usage, 2 thumb)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&showEntry, "entry", false, "print the catalog entry instead of the path")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if showEntry {
		entry, err := a.Catalog.Get(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	selector := ""
	if len(args) == 2 {
		selector = args[1]
	}
	rendition, err := archive.ParseRendition(selector)
	if err != nil {
		return err
	}
	path, err := a.Retrieval.Resolve(ctx, args[0], rendition)
	if err != nil {
		return err
	}
	cmd.Println(path)
	return nil
}

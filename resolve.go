package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/pathres"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [flags] <path>",
		Short: "Print the canonical form of a path",
		Long: `Print the canonical form of a path without touching the filesystem.

Formats:
  relative   joined to the working directory unless already absolute (default)
  absolute   must already be absolute
  canonical  must already be canonical; returned unchanged apart from cleanup`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().String("format", "relative", "input format: relative, absolute or canonical")
	cmd.Flags().Bool("strict", false, "reject names that are not portable")

	return cmd
}

// resolveJSONOutput is the JSON output schema for the resolve command.
type resolveJSONOutput struct {
	Input    string `json:"input"`
	Format   string `json:"format"`
	Path     string `json:"path"`
	Extended string `json:"extended"`
	Escaped  bool   `json:"escaped"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	formatName, _ := cmd.Flags().GetString("format")

	format, err := pathres.ParseFormat(formatName)
	if err != nil {
		return err
	}

	opts := resolverOptions(&cc.Cfg.Paths)

	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts.Strict = true
	}

	c, err := pathres.New(opts).Resolve(args[0], format)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return writeJSON(w, resolveJSONOutput{
			Input:    args[0],
			Format:   format.String(),
			Path:     c.Path,
			Extended: c.Extended,
			Escaped:  c.Escaped(),
		})
	}

	fmt.Fprintln(w, c.Extended)

	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ft/internal/errcat"
)

// whyCmd renders the catalogue entry for an FT-#### code (spec §6.8).
// Exit codes: 0 success, 2 bad usage, 64 unknown code.
func whyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "why <FT-code>",
		Short: "explain an FT-#### error code",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return exitErr(2, "usage: ft why <FT-code>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			def, ok := errcat.Default().Lookup(code)
			if !ok {
				return exitErr(64, "unknown error code %q", code)
			}
			fmt.Print(def.FormatPlain())
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ft/internal/crashbundle"
)

func bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "inspect and export crash/incident bundles",
	}
	cmd.AddCommand(bundleListCmd(), bundleShowCmd(), bundleExportCmd(), bundleReplayCmd())
	return cmd
}

func bundleListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list crash bundles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePaths()
			if err != nil {
				return err
			}
			bundles := crashbundle.ListCrashBundles(p.CrashDir(), limit)
			if len(bundles) == 0 {
				fmt.Println("no crash bundles")
				return nil
			}
			for _, b := range bundles {
				msg := ""
				if b.Report != nil {
					msg = b.Report.Message
				}
				fmt.Printf("%s\t%s\n", filepath.Base(b.Path), msg)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum bundles to list")
	return cmd
}

func bundleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bundle-dir>",
		Short: "print a bundle's manifest and report",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return exitErr(2, "usage: ft bundle show <bundle-dir>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			found := false
			for _, name := range []string{"manifest.json", "crash_report.json", "health_snapshot.json", "incident_manifest.json", "db_metadata.json", "redaction_report.json"} {
				data, err := os.ReadFile(filepath.Join(dir, name))
				if err != nil {
					continue
				}
				found = true
				var pretty map[string]any
				if err := json.Unmarshal(data, &pretty); err != nil {
					fmt.Printf("--- %s (unparsed) ---\n%s\n", name, data)
					continue
				}
				out, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Printf("--- %s ---\n%s\n", name, out)
			}
			if !found {
				return fmt.Errorf("no bundle files found in %s", dir)
			}
			return nil
		},
	}
}

func bundleExportCmd() *cobra.Command {
	var kind string
	var dbPath string
	var maxEvents int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "collect a redacted incident bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePaths()
			if err != nil {
				return err
			}
			var k crashbundle.Kind
			switch kind {
			case "crash":
				k = crashbundle.KindCrash
			case "manual":
				k = crashbundle.KindManual
			default:
				return exitErr(2, "--kind must be crash or manual, got %q", kind)
			}
			if dbPath == "" {
				dbPath = p.DBPath()
			}
			result, err := crashbundle.CollectIncidentBundle(crashbundle.Options{
				CrashDir:   p.CrashDir(),
				ConfigPath: p.SettingsPath(),
				OutDir:     p.IncidentsDir(),
				Kind:       k,
				DBPath:     dbPath,
				MaxEvents:  maxEvents,
			})
			if err != nil {
				return err
			}
			fmt.Println(result.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "manual", "crash or manual")
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default <root>/ft.db)")
	cmd.Flags().IntVar(&maxEvents, "max-events", 50, "maximum recent events to include")
	return cmd
}

func bundleReplayCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "replay <bundle-dir>",
		Short: "validate a bundle offline (Policy or Rules mode)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return exitErr(2, "usage: ft bundle replay <bundle-dir>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var m crashbundle.ReplayMode
			switch mode {
			case "policy":
				m = crashbundle.ReplayPolicy
			case "rules":
				m = crashbundle.ReplayRules
			default:
				return exitErr(2, "--mode must be policy or rules, got %q", mode)
			}
			result, err := crashbundle.Replay(args[0], m)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			if result.Status != "pass" {
				return exitErr(1, "replay status: %s", result.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "policy", "policy or rules")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"strings"

	"photodate/internal/app"
	"photodate/internal/config"
	"photodate/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Scan", "CorrectUnit");
// args are its command-line arguments, recorded on the operation row.
func newApp(operation string, args ...string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "photodate",
	Short: "Correct capture dates on scanned photos",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Unprocessed Dir: %s\n", cfg.Photos.UnprocessedDir)
		fmt.Printf("Processed Dir:   %s\n", cfg.Photos.ProcessedDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Unprocessed Dir: %s\n", cfg.Photos.UnprocessedDir)
		fmt.Printf("Processed Dir:   %s\n", cfg.Photos.ProcessedDir)
		fmt.Printf("Database:        %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index photos under the unprocessed root",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.Scan()
		if err != nil {
			a.SetError()
			return err
		}
		fmt.Printf("Indexed %d new photo(s)\n", count)
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List units awaiting date correction",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Pending")
		if err != nil {
			return err
		}
		defer a.Close()

		units, err := a.Pending()
		if err != nil {
			return err
		}
		if len(units) == 0 {
			fmt.Println("No pending units")
			return nil
		}
		for _, u := range units {
			fmt.Printf("%s\n", u.BaseName)
			for _, m := range u.Members {
				suggested := "-"
				if m.SuggestedDate != nil {
					suggested = m.SuggestedDate.Format("2006-01-02")
				}
				fmt.Printf("  %-8s %-10s %s\n", m.Role, suggested, m.Filepath)
			}
		}
		return nil
	},
}

// correct command
var correctCmd = &cobra.Command{
	Use:   "correct <base-name> <date>",
	Short: "Correct a unit's capture date (YYYY-MM-DD; 1900-01-01 = unknown)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CorrectUnit", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.CorrectUnit(cmd.Context(), args[0], args[1])
		if err != nil {
			a.SetError()
			return err
		}
		printUnitResult(result)
		if !result.Success {
			a.SetError()
			return fmt.Errorf("unit %s failed", result.BaseName)
		}
		return nil
	},
}

// correct-group command
var correctGroupCmd = &cobra.Command{
	Use:   "correct-group <group-id> <date>",
	Short: "Correct every unit in a group, one transaction per unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CorrectGroup", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.CorrectGroup(cmd.Context(), args[0], args[1])
		if err != nil {
			a.SetError()
			return err
		}

		failed := 0
		for _, r := range results {
			printUnitResult(r)
			if !r.Success {
				failed++
			}
		}
		if failed > 0 {
			a.SetError()
			return fmt.Errorf("%d of %d unit(s) failed", failed, len(results))
		}
		return nil
	},
}

// group command
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage unit groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name> <base-name>...",
	Short: "Create a group from unit base names",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateGroup", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.CreateGroup(args[0], args[1:])
		if err != nil {
			a.SetError()
			return err
		}
		fmt.Printf("Created group %s with %d unit(s)\n", id, len(args)-1)
		return nil
	},
}

// ignore command
var ignoreCmd = &cobra.Command{
	Use:   "ignore <base-name>",
	Short: "Exclude a unit from future listings and scans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Ignore", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Ignore(args[0])
		if err != nil {
			a.SetError()
			return err
		}
		fmt.Printf("Ignored %d photo(s) in unit %s\n", n, args[0])
		return nil
	},
}

// cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove tracking rows for files missing from disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Cleanup")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Cleanup()
		if err != nil {
			a.SetError()
			return err
		}
		fmt.Printf("Removed %d stale row(s)\n", n)
		return nil
	},
}

func printUnitResult(r *model.UnitResult) {
	status := "OK"
	if !r.Success {
		status = "FAILED"
		if r.Corrupted {
			status = "FAILED (manual recovery required)"
		}
	}
	fmt.Printf("%s: %s: %s\n", r.BaseName, status, r.Message)
	for _, f := range r.PerFile {
		if f.Succeeded {
			fmt.Printf("  moved %s -> %s\n", f.Path, f.FinalPath)
		} else {
			fmt.Printf("  %s: %s\n", f.Path, f.Reason)
		}
		if len(f.Warnings) > 0 {
			fmt.Printf("    warnings: %s\n", strings.Join(f.Warnings, "; "))
		}
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(correctGroupCmd)
	groupCmd.AddCommand(groupCreateCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(cleanupCmd)
}

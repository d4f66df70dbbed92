// Command pytype-ls hosts the language server query surface (spec.md §5)
// over stdio. Subcommand shape follows the teacher's demo/cmd/main.go
// cobra pattern (a root command plus AddCommand-registered subcommands)
// rather than cmd/morfx's flat pflag set, since this binary's surface is
// "one thing to run, plus a version check" rather than a flag-heavy batch
// tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/langserver"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/syntax"
)

const toolVersion = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pytype-ls",
		Short: "Language server for the pytype static checker",
		Long:  "Serves textDocument/hover, definition, references, rename, completion, signatureHelp, documentSymbol, and codeAction over the Language Server Protocol.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "project", "p", "", "path to pytypeconfig.json or pyproject.toml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the language server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the language server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(toolVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	osfs := fsutil.OS{}
	res := resolver.New(osfs, resolver.Roots{
		SourceRoots:     []string{root},
		TypeshedRoot:    cfg.TypeshedPath,
		ThirdPartyRoots: []string{cfg.VenvPath},
		UseThirdParty:   cfg.VenvPath != "",
	})
	dialect := dialectFor(cfg)

	srv := langserver.NewServer(cfg, osfs, res, dialect, os.Stdout)
	return srv.Serve(context.Background(), os.Stdin)
}

func loadConfig(explicit string) (*config.Config, error) {
	path := explicit
	if path == "" {
		for _, candidate := range []string{"pytypeconfig.json", "pyproject.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("pytype-ls: %w", err)
	}
	return cfg, nil
}

func dialectFor(cfg *config.Config) syntax.Dialect {
	d := syntax.DefaultDialect()
	if cfg.PythonVersion == "" {
		return d
	}
	var major, minor int
	if n, _ := fmt.Sscanf(cfg.PythonVersion, "%d.%d", &major, &minor); n == 2 {
		d.PythonVersion = [2]int{major, minor}
	}
	if cfg.PythonPlatform != "" {
		d.PythonPlatform = cfg.PythonPlatform
	}
	return d
}

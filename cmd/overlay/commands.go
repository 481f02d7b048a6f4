// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/logging"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/ux"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/settings"
)

var (
	projectRoot string
	configPath  string
	logLevel    string
	jsonOutput  bool
	contextName string
	forceInit   bool
	dialectName string

	// Populated by PersistentPreRunE.
	cfg    settings.Settings
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "overlay",
		Short: "Resolve TYPO3 Fluid template overlays",
		Long: `overlay reads the template, layout and partial root paths a TYPO3
project declares in TypoScript and site settings, indexes the files under
them and reports which file wins for every logical template name.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default settings file to the project root",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	resolveCmd = &cobra.Command{
		Use:     "resolve KIND NAME",
		Short:   "Print the effective file for a logical name",
		Example: "  overlay resolve template Page/Show",
		Args:    cobra.ExactArgs(2),
		RunE:    runResolve,
	}

	candidatesCmd = &cobra.Command{
		Use:   "candidates KIND NAME",
		Short: "List every candidate for a logical name, best first",
		Args:  cobra.ExactArgs(2),
		RunE:  runCandidates,
	}

	namesCmd = &cobra.Command{
		Use:   "names KIND",
		Short: "List the logical names of a kind",
		Args:  cobra.ExactArgs(1),
		RunE:  runNames,
	}

	rootsCmd = &cobra.Command{
		Use:   "roots",
		Short: "Show the effective root paths and the files declaring them",
		Args:  cobra.NoArgs,
		RunE:  runRoots,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	classifyCmd = &cobra.Command{
		Use:   "classify PATH...",
		Short: "Show how changes to the given paths would be treated",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}

	parseCmd = &cobra.Command{
		Use:   "parse FILE",
		Short: "Show the root paths one configuration file declares",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and print resolution changes",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Watch the project and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectRoot, "root", "r", ".", "project root directory")
	flags.StringVarP(&configPath, "config", "c", "", "settings file (default <root>/"+settings.FileName+")")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&jsonOutput, "json", false, "force JSON output")
	flags.StringVar(&contextName, "context", "", "context to query (default from settings)")

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing settings file")
	parseCmd.Flags().StringVar(&dialectName, "dialect", "", "typoscript or site_settings (default by file name)")

	rootCmd.AddCommand(initCmd, resolveCmd, candidatesCmd, namesCmd, rootsCmd, statsCmd,
		classifyCmd, parseCmd, watchCmd, serveCmd)
}

// setup loads settings and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := settings.Load(projectRoot, configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return err
		}
		loaded.Log.Level = logLevel
	}
	cfg = loaded

	logger = logging.New(logging.Config{
		Level:   logging.LevelFromString(cfg.Log.Level),
		JSON:    cfg.Log.JSON,
		LogDir:  cfg.Log.Dir,
		Service: "overlay",
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())
	return nil
}

// printer picks JSON when requested or when stdout is not a terminal.
func printer(cmd *cobra.Command) *ux.Printer {
	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return ux.NewPrinter(out, ux.FormatJSON)
	case out == os.Stdout:
		return ux.NewPrinter(out, ux.DetectFormat(os.Stdout))
	default:
		return ux.NewPrinter(out, ux.FormatText)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = cfg.ProjectRoot + string(os.PathSeparator) + settings.FileName
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := settings.WriteDefault(cfg.ProjectRoot, path); err != nil {
		return err
	}
	p := printer(cmd)
	return p.Emit(map[string]string{"written": path}, func(p *ux.Printer) {
		p.Item(ux.IconSuccess, "wrote "+path)
	})
}

// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tablekeep/internal/engine"
)

type copyFlags struct {
	source      string
	target      string
	stop        string
	test        bool
	debug       bool
	noBlobs     bool
	config      string
	env         string
	projectRoot string
	subsystem   string
}

type archiveFlags struct {
	source      string
	target      string
	stop        string
	debug       bool
	noBlobs     bool
	config      string
	env         string
	projectRoot string
	subsystem   string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tablekeep",
		Short: "Schema and data migration/archival engine",
	}

	rootCmd.AddCommand(copyCmd())
	rootCmd.AddCommand(archiveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func copyCmd() *cobra.Command {
	flags := &copyFlags{}
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Reflect a source schema and copy its data into a target database",
		Long: `Copy reflects a source database's schema and foreign-key dependencies,
emits a datapackage descriptor and target DDL, then copies every included
table's rows into the target, verifying row counts as it goes.

Examples:
  tablekeep copy --source jdbc:sqlite:/s.db --target jdbc:sqlite:/t.db
  tablekeep copy --source prod --target warehouse --config connections.yaml
  tablekeep copy --source jdbc:mysql://localhost/app --target jdbc:postgresql://localhost/app --stop ddl`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCopy(flags)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "Source connection URL or alias (required)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Target connection URL or alias (required)")
	cmd.Flags().StringVar(&flags.stop, "stop", "", "Pause after a phase for manual editing: tables, json, ddl, or copy")
	cmd.Flags().BoolVar(&flags.test, "test", false, "Truncate each target table immediately after its row count verifies")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Print each statement as it executes")
	cmd.Flags().BoolVar(&flags.noBlobs, "no-blobs", false, "Suppress blob/binary columns during copy")
	addSharedFlags(cmd, &flags.config, &flags.env, &flags.projectRoot, &flags.subsystem)

	return cmd
}

func archiveCmd() *cobra.Command {
	flags := &archiveFlags{}
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Reflect a source schema and export its data as TSV",
		Long: `Archive reflects a source database's schema and foreign-key dependencies,
emits a datapackage descriptor and DDL, then streams every included table's
rows to a TSV file, spilling blob/CLOB cells to sidecar documents and
validating batches of tables once their dependency closure has exported.

Examples:
  tablekeep archive --source jdbc:sqlite:/s.db
  tablekeep archive --source prod --config connections.yaml --no-blobs`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runArchive(flags)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "Source connection URL or alias (required)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Target dialect for DDL generation; defaults to source")
	cmd.Flags().StringVar(&flags.stop, "stop", "", "Pause after a phase for manual editing: tables, json, or ddl")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Print each statement as it executes")
	cmd.Flags().BoolVar(&flags.noBlobs, "no-blobs", false, "Suppress blob/binary columns during export")
	addSharedFlags(cmd, &flags.config, &flags.env, &flags.projectRoot, &flags.subsystem)

	return cmd
}

func addSharedFlags(cmd *cobra.Command, config, env, projectRoot, subsystem *string) {
	cmd.Flags().StringVar(config, "config", "", "Path to a connections.yaml resolving source/target aliases")
	cmd.Flags().StringVar(env, "env", "", "Path to a .env overlay supplying alias credentials")
	cmd.Flags().StringVar(projectRoot, "project", ".", "Project root under which content/ and tmp/ are written")
	cmd.Flags().StringVar(subsystem, "subsystem", "default", "Subsystem name, scoping the persisted layout")
}

func runCopy(flags *copyFlags) error {
	if flags.source == "" {
		return fmt.Errorf("--source is required")
	}
	if flags.target == "" {
		return fmt.Errorf("--target is required")
	}

	opts := engine.Options{
		Source:      flags.source,
		Target:      flags.target,
		ConfigPath:  flags.config,
		EnvPath:     flags.env,
		ProjectRoot: flags.projectRoot,
		Subsystem:   flags.subsystem,
		Stop:        flags.stop,
		Test:        flags.test,
		Debug:       flags.debug,
		NoBlobs:     flags.noBlobs,
		Out:         os.Stdout,
	}

	code, err := engine.Copy(context.Background(), opts)
	return exitWith(code, err)
}

func runArchive(flags *archiveFlags) error {
	if flags.source == "" {
		return fmt.Errorf("--source is required")
	}
	target := flags.target
	if target == "" {
		target = flags.source
	}

	opts := engine.Options{
		Source:      flags.source,
		Target:      target,
		ConfigPath:  flags.config,
		EnvPath:     flags.env,
		ProjectRoot: flags.projectRoot,
		Subsystem:   flags.subsystem,
		Stop:        flags.stop,
		Debug:       flags.debug,
		NoBlobs:     flags.noBlobs,
		Out:         os.Stdout,
	}

	code, err := engine.Archive(context.Background(), opts)
	return exitWith(code, err)
}

// exitWith prints err (if any) and translates code into a process exit,
// without relying on cobra's own error-to-exit-1 path: a cycle must exit 2,
// not 1, per the CLI's three-valued contract.
func exitWith(code engine.ExitCode, err error) error {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	if code != engine.ExitOK {
		os.Exit(int(code))
	}
	return nil
}

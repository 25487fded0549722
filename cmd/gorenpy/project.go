/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gorenpy/internal/backend"
	"gorenpy/internal/export"
	"gorenpy/internal/storage"
	"gorenpy/internal/telemetry"
	"gorenpy/internal/watch"
)

func parseStats(s storage.IndexStats) telemetry.ParseStats {
	return telemetry.ParseStats{Files: s.Files, Statements: s.Statements, Errors: s.Failed, Skipped: s.Skipped, Elapsed: s.Elapsed}
}

func printStats(w io.Writer, s storage.IndexStats) {
	_, _ = fmt.Fprintf(w, "%d files: %d parsed, %d unchanged, %d failed, %d removed; %d statements, %d documents in %s\n",
		s.Files, s.Parsed, s.Skipped, s.Failed, s.Removed, s.Statements, s.Documents, s.Elapsed.Round(time.Millisecond))
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		opts    storage.IndexOptions
		rebuild bool
	)
	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Index the project's scripts for search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project(projectArg(args))
			if err != nil {
				return err
			}
			if opts.Workers == 0 {
				opts.Workers = a.cfg.Index.Workers
			}
			ctx := cmd.Context()
			var stats storage.IndexStats
			if rebuild {
				stats, err = storage.RebuildIndex(ctx, p, opts)
			} else {
				if _, err := storage.DetectAndRebuildIndex(ctx, p, opts); err != nil {
					return err
				}
				stats, err = storage.IndexProject(ctx, p, opts)
			}
			if err != nil {
				return err
			}
			telemetry.Parsed("index", parseStats(stats))
			printStats(cmd.OutOrStdout(), stats)
			if stats.Failed > 0 {
				errs, err := storage.ParseErrors(ctx, p)
				if err != nil {
					return err
				}
				for _, e := range errs {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), e.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 0, "Parallel parses (0 uses the config value or GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Reparse files even when unchanged")
	cmd.Flags().IntVar(&opts.KeepSnapshots, "keep-snapshots", 0, "Script versions kept per file (negative disables)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop and rebuild the derived index tables")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		q         storage.SearchQuery
		whereUsed string
		errsOnly  bool
		remote    string
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search indexed labels, dialogue and definitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project("")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if len(args) > 0 {
				q.Text = args[0]
			}
			var res []storage.SearchResult
			switch {
			case errsOnly:
				errs, err := storage.ParseErrors(ctx, p)
				if err != nil {
					return err
				}
				for _, e := range errs {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), e.String())
				}
				return nil
			case whereUsed != "":
				res, err = storage.WhereUsed(ctx, p, whereUsed, q.Limit, q.Offset)
			case remote != "":
				db, oerr := backend.Open(ctx, a.dsn, a.cfg.Backend.Timeout())
				if oerr != nil {
					return oerr
				}
				defer func() { _ = db.Close() }()
				res, err = backend.SearchPG(ctx, db, remote, q)
			default:
				res, err = storage.Search(ctx, p, q)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range res {
				text := r.Text
				if r.Snippet != "" {
					text = r.Snippet
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Location(), r.Kind, r.Name, text)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVarP(&q.Kinds, "kind", "k", nil, "Restrict to document kinds (label, say, choice, jump, call, define, ...)")
	cmd.Flags().StringVar(&q.Name, "name", "", "Exact speaker, label or variable name")
	cmd.Flags().StringVar(&q.File, "file", "", "Path prefix of the scripts to search")
	cmd.Flags().StringVar(&q.Scope, "scope", "", "Enclosing global label")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "Maximum results")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "Results to skip")
	cmd.Flags().StringVar(&whereUsed, "where-used", "", "List jumps and calls targeting this label")
	cmd.Flags().BoolVar(&errsOnly, "errors", false, "List scripts that failed to parse")
	cmd.Flags().StringVar(&remote, "remote", "", "Search the named project on the shared Postgres index")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		restore int64
		prune   int
	)
	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "List, prune or restore stored versions of a script",
		Args: func(cmd *cobra.Command, args []string) error {
			if restore > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project("")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if restore > 0 {
				path, err := storage.RestoreScriptSnapshot(ctx, p, restore)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restored", path)
				return nil
			}
			file := p.Rel(p.Abs(args[0]))
			if prune > 0 {
				n, err := storage.PruneOldScriptSnapshots(ctx, p, file, prune)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d versions\n", n)
				return nil
			}
			list, err := storage.ListScriptSnapshots(ctx, p, file, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s bytes\n", strconv.FormatInt(s.ID, 10), s.TS.Local().Format(time.DateTime), s.Hash[:12], strconv.Itoa(len(s.Text)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Versions to list")
	cmd.Flags().Int64Var(&restore, "restore", 0, "Restore the version with this id")
	cmd.Flags().IntVar(&prune, "prune", 0, "Keep only this many versions of the file")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var opt export.BatchOptions
	var preset string
	cmd := &cobra.Command{
		Use:   "export [file]...",
		Short: "Export scripts as JSON or CBOR trees, or as a printable PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project("")
			if err != nil {
				return err
			}
			opt.Preset = export.PresetName(preset)
			for _, f := range args {
				opt.Files = append(opt.Files, p.Rel(p.Abs(f)))
			}
			res, err := export.BatchExport(cmd.Context(), p, opt)
			if err != nil {
				return err
			}
			for _, w := range res.Written {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetData), "Preset: data (json, cbor) or print (pdf)")
	cmd.Flags().StringSliceVar(&opt.Formats, "format", nil, "Formats overriding the preset: json, cbor, pdf")
	cmd.Flags().StringVarP(&opt.OutDir, "out", "o", "", "Output directory (relative paths land under <project>/exports)")
	cmd.Flags().BoolVar(&opt.Validate, "validate", true, "Validate JSON trees against the schema")
	cmd.Flags().StringVar(&opt.PDF.PageSize, "page-size", "A4", "PDF page size: A4, A5 or Letter")
	cmd.Flags().BoolVar(&opt.PDF.IncludeStage, "stage", false, "Print show, hide, scene and with lines in the PDF")
	cmd.Flags().BoolVar(&opt.PDF.LineNumbers, "line-numbers", false, "Prefix PDF entries with source lines")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "publish [root]",
		Short: "Publish the local index to the shared Postgres index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project(projectArg(args))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := storage.IndexProject(ctx, p, storage.IndexOptions{Workers: a.cfg.Index.Workers}); err != nil {
				return err
			}
			db, err := backend.Open(ctx, a.dsn, a.cfg.Backend.Timeout())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if name == "" {
				name = filepath.Base(p.Root)
			}
			pub, err := backend.PublishProject(ctx, db, p, name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %s version %d (%d documents)\n", name, pub.Version, pub.Documents)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name on the server (defaults to the root directory name)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var opt watch.Options
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-index the project whenever a script changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.project(projectArg(args))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			opt.Index.Workers = a.cfg.Index.Workers
			out := cmd.OutOrStdout()
			opt.OnIndexed = func(s storage.IndexStats, err error) {
				if err != nil {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "index:", err)
					return
				}
				telemetry.Parsed("watch", parseStats(s))
				printStats(out, s)
			}
			_, _ = fmt.Fprintln(out, "watching", p.Root)
			return watch.Run(ctx, p, opt)
		},
	}
	cmd.Flags().DurationVar(&opt.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-indexing")
	return cmd
}

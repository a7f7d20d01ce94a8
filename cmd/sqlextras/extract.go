package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/parser"
	"github.com/danizen/sqlextras/internal/source"
	"github.com/danizen/sqlextras/internal/storage"
	"github.com/danizen/sqlextras/internal/ui"
	"github.com/danizen/sqlextras/pkg/logger"
)

var actionsCmd = &cobra.Command{
	Use:   "actions <source>...",
	Short: "List the DDL actions of SQL sources",
	Long: `List the DDL actions (action, object type, object name) of each source in
the order they appear. A source is a file, a directory of .sql files, an
http(s) URL or an s3:// object or prefix.`,
	Example: `  sqlextras actions schema.sql
  sqlextras actions migrations/ -o json
  sqlextras actions s3://bucket/release/ --dialect postgres`,
	Args: cobra.MinimumNArgs(1),
	RunE: runActions,
}

var objectsCmd = &cobra.Command{
	Use:   "objects <source>...",
	Short: "List the distinct objects touched by SQL sources",
	Long: `List every distinct (object type, object name) pair acted on by the
sources, sorted by type then name. With --recorded the objects come from the
latest ledger scan of each source instead of reading the sources.`,
	Example: `  sqlextras objects migrations/
  sqlextras objects schema.sql --type view
  sqlextras objects --recorded s3://bucket/schema.sql`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObjects,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens <source>",
	Short: "Show how a SQL source is tokenized",
	Example: `  sqlextras tokens schema.sql
  sqlextras tokens schema.sql --dialect postgres -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runTokens,
}

var checkCmd = &cobra.Command{
	Use:   "check <source>...",
	Short: "Compare extracted actions with the PostgreSQL parser",
	Long: `Extract each source and compare the actions with those the PostgreSQL
parser finds in the same text. Sources where the two disagree are listed and
the command exits non-zero, which makes it usable as a CI gate for scripts
that target PostgreSQL.`,
	Example: `  sqlextras check migrations/
  sqlextras check schema.sql --dialect postgres -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

type sourceActions struct {
	Source  string       `json:"source" yaml:"source"`
	Actions []ddl.Action `json:"actions" yaml:"actions"`
}

// expandSources resolves every argument to the locations it names.
func expandSources(ctx context.Context, opener *source.Opener, args []string) ([]string, error) {
	var locations []string
	for _, arg := range args {
		locs, err := opener.Expand(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", arg, err)
		}
		locations = append(locations, locs...)
	}
	return locations, nil
}

func readSource(ctx context.Context, opener *source.Opener, location string) ([]byte, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return content, nil
}

// extractAll reads and extracts every location. The first input error aborts
// the whole run.
func extractAll(ctx context.Context, args []string) ([]sourceActions, error) {
	extractor, err := newExtractor()
	if err != nil {
		return nil, err
	}
	opener := newOpener()

	locations, err := expandSources(ctx, opener, args)
	if err != nil {
		return nil, err
	}

	progress := ui.NewProgress(out, len(locations))
	progress.Start()
	defer progress.Done()

	results := make([]sourceActions, 0, len(locations))
	for _, loc := range locations {
		content, err := readSource(ctx, opener, loc)
		if err != nil {
			return nil, err
		}
		actions, err := extractor.ExtractActions(bytes.NewReader(content), cfg.Scan.Encoding)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		results = append(results, sourceActions{Source: loc, Actions: actions})
		progress.Step(loc)
	}
	return results, nil
}

func runActions(cmd *cobra.Command, args []string) error {
	results, err := extractAll(cmd.Context(), args)
	if err != nil {
		return err
	}

	if len(results) == 1 {
		return out.Actions(results[0].Actions)
	}
	if out.Structured() {
		return out.Data(results)
	}
	for i, r := range results {
		if i > 0 {
			out.Print("")
		}
		out.Title(r.Source)
		if err := out.Actions(r.Actions); err != nil {
			return err
		}
	}
	return nil
}

func runObjects(cmd *cobra.Command, args []string) error {
	var set ddl.ObjectSet
	if fromLedger {
		store, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		if set, err = recordedObjects(cmd.Context(), newOpener(), store, args); err != nil {
			return err
		}
	} else {
		results, err := extractAll(cmd.Context(), args)
		if err != nil {
			return err
		}
		set = ddl.NewObjectSet()
		for _, r := range results {
			for obj := range ddl.ObjectsOf(r.Actions) {
				set.Add(obj)
			}
		}
	}

	if objectType != "" {
		filtered := ddl.NewObjectSet()
		for obj := range set {
			if obj.Type() == objectType.String() {
				filtered.Add(obj)
			}
		}
		set = filtered
	}
	return out.Objects(set)
}

type objectLister interface {
	LatestObjects(ctx context.Context, source string) (ddl.ObjectSet, error)
}

// recordedObjects collects the objects of the latest scan of each source.
// Arguments expand as they do for record, falling back to the argument
// itself when it no longer exists locally. Expanded locations without a
// recorded scan are skipped, but every argument must match at least one.
func recordedObjects(ctx context.Context, opener *source.Opener, store objectLister, sources []string) (ddl.ObjectSet, error) {
	set := ddl.NewObjectSet()
	for _, src := range sources {
		locations, err := opener.Expand(ctx, src)
		if err != nil {
			logger.Debug("recorded source not expanded", "source", src, "err", err)
			locations = []string{src}
		}

		found := false
		for _, loc := range locations {
			objs, err := store.LatestObjects(ctx, loc)
			if errors.Is(err, storage.ErrNotFound) && len(locations) > 1 {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%s: %w", loc, err)
			}
			found = true
			for obj := range objs {
				set.Add(obj)
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: %w", src, storage.ErrNotFound)
		}
	}
	return set, nil
}

type sourceDiff struct {
	Source string `json:"source" yaml:"source"`
	parser.Diff `yaml:",inline"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	opener := newOpener()
	locations, err := expandSources(ctx, opener, args)
	if err != nil {
		return err
	}

	var diffs []sourceDiff
	for _, loc := range locations {
		content, err := readSource(ctx, opener, loc)
		if err != nil {
			return err
		}
		sql, err := lexer.Decode(bytes.NewReader(content), cfg.Scan.Encoding)
		if err != nil {
			return fmt.Errorf("%s: %w", loc, err)
		}
		diff, err := parser.Check(extractor, sql)
		if err != nil {
			return fmt.Errorf("%s: %w", loc, err)
		}
		if !diff.Empty() {
			diffs = append(diffs, sourceDiff{Source: loc, Diff: diff})
		}
	}

	if out.Structured() {
		if diffs == nil {
			diffs = []sourceDiff{}
		}
		if err := out.Data(diffs); err != nil {
			return err
		}
	} else if len(diffs) == 0 {
		out.Success(fmt.Sprintf("%d source(s) agree with the PostgreSQL parser", len(locations)))
	} else {
		for _, d := range diffs {
			out.Title(d.Source)
			for _, a := range d.Missing {
				out.Print("  - " + a.String())
			}
			for _, a := range d.Extra {
				out.Print("  + " + a.String())
			}
		}
	}

	if len(diffs) > 0 {
		return fmt.Errorf("%d of %d source(s) disagree with the PostgreSQL parser", len(diffs), len(locations))
	}
	return nil
}

func runTokens(cmd *cobra.Command, args []string) error {
	d, err := lexer.ParseDialect(cfg.Scan.Dialect)
	if err != nil {
		return err
	}
	lx, err := lexer.New(d)
	if err != nil {
		return err
	}

	content, err := readSource(cmd.Context(), newOpener(), args[0])
	if err != nil {
		return err
	}
	tokens, err := lexer.TokenizeReader(lx, bytes.NewReader(content), cfg.Scan.Encoding)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return out.Tokens(tokens, allTokens)
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchkit"
	"github.com/kailas-cloud/searchkit/internal/db"
	logpkg "github.com/kailas-cloud/searchkit/internal/logger"
	"github.com/kailas-cloud/searchkit/internal/repository/object/redisrepo"
	chiTransport "github.com/kailas-cloud/searchkit/internal/transport/chi"
)

const maxLineBytes = 4 << 20

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile [request.json|-]",
		Short: "Print the engine document a JSON search request compiles to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args)
			if err != nil {
				return err
			}
			s, err := searchkit.New(searchkit.WithDelimiter(configuredDelimiter())).FromRequest(req)
			if err != nil {
				return err
			}
			doc, err := s.Compile()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func newSearchCmd() *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:   "search [request.json|-]",
		Short: "Run a JSON search request and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := logpkg.With(logpkg.ContextWithLogger(cmd.Context(), a.logger), zap.String("command", "search"))
			ctx = searchkit.StartQueryLog(ctx)
			s, err := a.client.FromRequest(req)
			if err != nil {
				return err
			}
			if count {
				n, err := s.Count(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"count": n})
			}
			out, err := runSearch(ctx, s)
			if err != nil {
				return err
			}
			for _, e := range searchkit.QueryLog(ctx) {
				logpkg.FromContext(ctx).Debug("Search sent", zap.Int64("took_ms", e.Took), zap.Any("query", e.Query))
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "Print only the number of matches")
	return cmd
}

func runSearch(ctx context.Context, s *searchkit.Search) (chiTransport.SearchResponse, error) {
	set, err := s.Results(ctx)
	if err != nil {
		return chiTransport.SearchResponse{}, err
	}
	facets, err := s.FacetCounts(ctx)
	if err != nil {
		return chiTransport.SearchResponse{}, err
	}
	return chiTransport.NewSearchResponse(set, facets), nil
}

func newIndexCmd() *cobra.Command {
	var (
		index   string
		doctype string
		idField string
		objects bool
	)
	cmd := &cobra.Command{
		Use:   "index [docs.jsonl|-]",
		Short: "Load JSON lines into the bleve store",
		Long: "Each line is one JSON object. Its id field names the document. With --objects " +
			"the documents are also saved to the Redis object store under the doctype.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if a.store == nil {
				return errors.New("index requires backend.driver: bleve")
			}
			if objects && a.redis == nil {
				return errors.New("--objects requires objects.driver: redis")
			}

			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()

			n, err := loadDocuments(cmd.Context(), in, a.store, a.redis, index, doctype, idField, objects)
			if err != nil {
				return err
			}
			a.logger.Info("Indexed documents",
				zap.Int("count", n),
				zap.String("index", index),
				zap.String("doctype", doctype),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&index, "index", "i", "default", "Target index")
	cmd.Flags().StringVarP(&doctype, "doctype", "t", "", "Document type")
	cmd.Flags().StringVar(&idField, "id-field", "id", "Field holding the document id")
	cmd.Flags().BoolVar(&objects, "objects", false, "Also save documents as domain objects")
	return cmd
}

// loadDocuments indexes every line of in and returns how many were loaded.
func loadDocuments(
	ctx context.Context, in io.Reader, idx db.Indexer, repo *redisrepo.Repo,
	index, doctype, idField string, saveObjects bool,
) (int, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var objs []redisrepo.Object
	n := 0
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		src := db.NewSource()
		if err := src.UnmarshalJSON(sc.Bytes()); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		raw, ok := src.Get(idField)
		if !ok {
			return n, fmt.Errorf("line %d: missing %q", line, idField)
		}
		id := fmt.Sprint(raw)
		if err := idx.Index(ctx, index, doctype, id, src); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++

		if saveObjects {
			fields := make(map[string]any, src.Len())
			for p := src.Oldest(); p != nil; p = p.Next() {
				fields[p.Key] = p.Value
			}
			objs = append(objs, redisrepo.Object{ID: id, Fields: fields})
		}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read input: %w", err)
	}
	if saveObjects {
		if err := repo.Save(ctx, doctype, objs); err != nil {
			return n, err //nolint:wrapcheck // already names the target
		}
	}
	return n, nil
}

func readRequest(args []string) (searchkit.Request, error) {
	in, closeIn, err := openInput(args)
	if err != nil {
		return searchkit.Request{}, err
	}
	defer closeIn()
	data, err := io.ReadAll(in)
	if err != nil {
		return searchkit.Request{}, fmt.Errorf("read request: %w", err)
	}
	return searchkit.ParseRequest(data)
}

// openInput opens the named file, or stdin for "-" or no argument.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// configuredDelimiter falls back to the default when no config loads.
func configuredDelimiter() string {
	cfg, err := loadConfig()
	if err != nil {
		return searchkit.DefaultDelimiter
	}
	return cfg.Search.ActionDelimiter
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v) //nolint:wrapcheck // stdout write errors need no context
}

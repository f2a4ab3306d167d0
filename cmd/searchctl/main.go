package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
)

// scoreField is the field the query command reports per-hit TF-IDF for.
const scoreField = "field"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("searchctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "searchctl",
		Usage: "Query and feed a TF-IDF index from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file; defaults apply when empty",
				EnvVars: []string{"SP_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "index file to open; built from the configured source when missing",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "rank documents for a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "field to search (default search.defaultField)"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "maximum hits to print (default search.defaultLimit)"},
				},
				Action: queryAction,
			},
			{
				Name:      "tfidf",
				Usage:     "score one term against one document",
				ArgsUsage: "<doc-id> <term>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "field to score (default search.defaultField)"},
				},
				Action: tfidfAction,
			},
			{
				Name:      "doc",
				Usage:     "print a stored document",
				ArgsUsage: "<doc-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "print only this field"},
				},
				Action: docAction,
			},
			{
				Name:      "publish",
				Usage:     "publish a JSON lines file of documents to the ingest topic",
				ArgsUsage: "<file.jsonl>",
				Action:    publishAction,
			},
		},
	}
}

func appConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

// openEngine opens --index, or the configured index file, or builds one
// from the configured source when no file exists.
func openEngine(c *cli.Context) (*indexer.Engine, error) {
	cfg := appConfig(c)
	path := c.String("index")
	if path == "" {
		path = indexer.IndexPath(cfg.Indexer)
	}
	if _, err := os.Stat(path); err == nil {
		return indexer.Open(cfg.Indexer, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	src, closeSource, err := source.FromConfig(c.Context, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()
	engine := indexer.NewEngine(cfg.Indexer)
	if _, err := source.LoadAll(c.Context, engine, src); err != nil {
		return nil, err
	}
	if err := engine.BuildIndex(c.Context); err != nil {
		return nil, err
	}
	return engine, nil
}

func queryAction(c *cli.Context) error {
	cfg := appConfig(c)
	raw := strings.Join(c.Args().Slice(), " ")
	field := cmp.Or(c.String("field"), cfg.Search.DefaultField)
	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	q, err := parser.Parse(raw, field)
	if err != nil {
		return err
	}
	result, err := executor.New(engine).Execute(c.Context, q, limit)
	if err != nil {
		return err
	}
	return printHits(c.App.Writer, engine, q, result)
}

// printHits writes the hit count, one "<id> <isbn>\t<title>" line per hit,
// then the TF-IDF of the first query term in the "field" field of each hit.
// A hit without an isbn or title prints it empty.
func printHits(w io.Writer, docs *indexer.Engine, q *parser.Query, result *executor.SearchResult) error {
	if _, err := fmt.Fprintf(w, "Found %d hits.\n", len(result.Hits)); err != nil {
		return err
	}
	for _, hit := range result.Hits {
		isbn, err := optionalField(docs, hit.DocID, "isbn")
		if err != nil {
			return err
		}
		title, err := optionalField(docs, hit.DocID, "title")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%d %s\t%s\n", hit.DocID, isbn, title); err != nil {
			return err
		}
	}
	term := q.Terms()[0]
	for _, hit := range result.Hits {
		score := docs.TFIDF(hit.DocID, term, scoreField)
		if _, err := fmt.Fprintf(w, "tfidf(%d, %q, %s) = %v\n", hit.DocID, term, scoreField, score); err != nil {
			return err
		}
	}
	return nil
}

// optionalField is GetField with a missing field read as "".
func optionalField(docs *indexer.Engine, docID int, name string) (string, error) {
	value, err := docs.GetField(docID, name)
	if errors.Is(err, apperrors.ErrNotFound) {
		if _, docErr := docs.Document(docID); docErr == nil {
			return "", nil
		}
	}
	return value, err
}

func tfidfAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected <doc-id> <term>, got %d arguments", c.NArg())
	}
	docID, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", c.Args().Get(0), err)
	}
	field := cmp.Or(c.String("field"), appConfig(c).Search.DefaultField)

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	if _, err := engine.Document(docID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%v\n", engine.TFIDF(docID, c.Args().Get(1), field))
	return err
}

func docAction(c *cli.Context) error {
	docID, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", c.Args().First(), err)
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	if name := c.String("field"); name != "" {
		value, err := engine.GetField(docID, name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, value)
		return err
	}
	fields, err := engine.Document(docID)
	if err != nil {
		return err
	}
	return printDocument(c.App.Writer, fields)
}

func printDocument(w io.Writer, fields store.Fields) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s: %s\n", name, fields[name].Value); err != nil {
			return err
		}
	}
	return nil
}

func publishAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one JSON lines file")
	}
	events, err := readEvents(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	cfg := appConfig(c)
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	n, err := publisher.New(producer).IngestBatch(c.Context, events)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "Published %d documents to %s.\n", n, cfg.Kafka.Topics.DocumentIngest)
	return err
}

// readEvents loads a JSON lines file through the file source, so it is
// validated exactly as an index build would validate it.
func readEvents(ctx context.Context, path string) ([]ingestion.DocumentEvent, error) {
	var events []ingestion.DocumentEvent
	err := source.File(path).Load(ctx, func(fields store.Fields) error {
		events = append(events, ingestion.DocumentEvent{Fields: fields})
		return nil
	})
	return events, err
}

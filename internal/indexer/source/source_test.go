package source

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
)

type collectingAdder struct {
	docs []store.Fields
	err  error
}

func (c *collectingAdder) AddDocument(fields store.Fields) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.docs = append(c.docs, fields)
	return len(c.docs) - 1, nil
}

func TestSample(t *testing.T) {
	adder := &collectingAdder{}
	stats, err := LoadAll(context.Background(), adder, Sample())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, "sample", stats.Source)

	first := adder.docs[0]
	assert.Equal(t, store.Field{Value: "Lucene in Action", Analyzed: true}, first["title"])
	assert.Equal(t, store.Field{Value: "Lucene in Action", Analyzed: true}, first["field"])
	assert.Equal(t, store.Field{Value: "", Analyzed: true}, first["content"])
	assert.Equal(t, store.Field{Value: "193398817"}, first["isbn"])
	assert.Equal(t, "The Art of Computer Science", adder.docs[3]["title"].Value)
}

func TestLoadAllSurfacesEngineErrors(t *testing.T) {
	adder := &collectingAdder{err: apperrors.ErrIndexFrozen}
	stats, err := LoadAll(context.Background(), adder, Sample())
	assert.ErrorIs(t, err, apperrors.ErrIndexFrozen)
	assert.Equal(t, 0, stats.Added)
}

func writeLines(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestFile(t *testing.T) {
	path := writeLines(t, `{"fields":{"title":{"value":"Lucene in Action","analyzed":true},"isbn":{"value":"193398817"}}}

{"key":"b","fields":{"title":{"value":"Managing Gigabytes","analyzed":true}}}
`)
	adder := &collectingAdder{}
	stats, err := LoadAll(context.Background(), adder, File(path))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, "193398817", adder.docs[0]["isbn"].Value)
	assert.False(t, adder.docs[0]["isbn"].Analyzed)
	assert.Equal(t, "Managing Gigabytes", adder.docs[1]["title"].Value)
}

func TestFileErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines string
		want  string
	}{
		{"malformed", "{\"fields\":\n", "docs.jsonl:1"},
		{"invalid", `{"fields":{"title":{"value":"ok","analyzed":true}}}` + "\n" + `{"fields":{}}` + "\n", "docs.jsonl:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAll(context.Background(), &collectingAdder{}, File(writeLines(t, tt.lines)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadAll(context.Background(), &collectingAdder{}, File(filepath.Join(t.TempDir(), "missing.jsonl")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildQuery(t *testing.T) {
	query, columns, err := buildQuery(config.SourceConfig{
		Table:           "public.books",
		AnalyzedColumns: []string{"title", "content"},
		StoredColumns:   []string{"isbn"},
		OrderBy:         "id",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "title", "content", "isbn" FROM "public"."books" ORDER BY "id"`, query)
	assert.Equal(t, []column{{"title", true}, {"content", true}, {"isbn", false}}, columns)

	_, _, err = buildQuery(config.SourceConfig{Table: "books", AnalyzedColumns: []string{"title"}, StoredColumns: []string{"title"}})
	assert.Error(t, err)
	_, _, err = buildQuery(config.SourceConfig{Table: "books"})
	assert.Error(t, err)
	_, _, err = buildQuery(config.SourceConfig{AnalyzedColumns: []string{"title"}})
	assert.Error(t, err)
}

type fakeRows struct {
	rows [][]*string
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	for i, d := range dest {
		ns := d.(*sql.NullString)
		if row[i] == nil {
			*ns = sql.NullString{}
			continue
		}
		*ns = sql.NullString{String: *row[i], Valid: true}
	}
	return nil
}

func (f *fakeRows) Err() error   { return f.err }
func (f *fakeRows) Close() error { return nil }

func str(s string) *string { return &s }

func fakePostgres(attempts *int, failures int, rows [][]*string) *pgSource {
	return &pgSource{
		cfg: config.SourceConfig{
			Table:           "books",
			AnalyzedColumns: []string{"title"},
			StoredColumns:   []string{"isbn"},
			OrderBy:         "id",
		},
		query: func(ctx context.Context, query string) (rowScanner, error) {
			*attempts++
			if *attempts <= failures {
				return nil, errors.New("connection reset by peer")
			}
			return &fakeRows{rows: rows}, nil
		},
		retry: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestPostgresRetriesThenLoads(t *testing.T) {
	attempts := 0
	src := fakePostgres(&attempts, 2, [][]*string{
		{str("Lucene in Action"), str("193398817")},
		{str("Managing Gigabytes"), nil},
	})
	adder := &collectingAdder{}
	stats, err := LoadAll(context.Background(), adder, src)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, store.Field{Value: "Lucene in Action", Analyzed: true}, adder.docs[0]["title"])
	assert.Equal(t, store.Field{Value: ""}, adder.docs[1]["isbn"])
	assert.Equal(t, "postgres:books", src.Name())
}

func TestPostgresGivesUp(t *testing.T) {
	attempts := 0
	src := fakePostgres(&attempts, 5, nil)
	_, err := LoadAll(context.Background(), &collectingAdder{}, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, 3, attempts)
}

func TestKafkaHandler(t *testing.T) {
	adder := &collectingAdder{}
	handle := handleEvent(func(fields store.Fields) error {
		_, err := adder.AddDocument(fields)
		return err
	})
	ctx := context.Background()

	require.NoError(t, handle(ctx, []byte("a"), []byte(`{"fields":{"title":{"value":"Lucene for Dummies","analyzed":true}}}`)))
	require.NoError(t, handle(ctx, []byte("b"), []byte(`not json`)))
	require.NoError(t, handle(ctx, []byte("c"), []byte(`{"fields":{}}`)))
	require.Len(t, adder.docs, 1)
	assert.Equal(t, "Lucene for Dummies", adder.docs[0]["title"].Value)

	adder.err = apperrors.ErrIndexFrozen
	err := handle(ctx, []byte("d"), []byte(`{"fields":{"title":{"value":"x","analyzed":true}}}`))
	assert.ErrorIs(t, err, kafka.ErrAbort)
	assert.ErrorIs(t, err, apperrors.ErrIndexFrozen)
}

// topicLog is a single-partition ingest topic.
type topicLog struct {
	msgs []kafkago.Message
}

func (l *topicLog) Partitions(context.Context) ([]int, error) { return []int{0}, nil }

func (l *topicLog) Offsets(context.Context, int) (int64, int64, error) {
	return 0, int64(len(l.msgs)), nil
}

func (l *topicLog) Open(_ int, offset int64) (kafka.MessageFetcher, error) {
	return &topicReader{msgs: l.msgs[offset:]}, nil
}

type topicReader struct {
	msgs []kafkago.Message
}

func (r *topicReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *topicReader) Close() error { return nil }

func ingestTopic(values ...string) *topicLog {
	l := &topicLog{}
	for i, v := range values {
		l.msgs = append(l.msgs, kafkago.Message{Offset: int64(i), Value: []byte(v)})
	}
	return l
}

func TestKafkaLoadsSameDocumentsEveryBuild(t *testing.T) {
	src := &kafkaSource{
		topic: "document-ingest",
		log: ingestTopic(
			`{"fields":{"title":{"value":"Lucene in Action","analyzed":true}}}`,
			`not json`,
			`{"fields":{"title":{"value":"Managing Gigabytes","analyzed":true}}}`,
		),
		window: time.Second,
	}

	first := &collectingAdder{}
	stats, err := LoadAll(context.Background(), first, src)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)

	second := &collectingAdder{}
	_, err = LoadAll(context.Background(), second, src)
	require.NoError(t, err)
	assert.Equal(t, first.docs, second.docs)
	assert.Equal(t, "Managing Gigabytes", second.docs[1]["title"].Value)
}

func TestKafkaWindowExceeded(t *testing.T) {
	src := &kafkaSource{topic: "document-ingest", log: &stuckLog{&topicLog{}}, window: 20 * time.Millisecond}

	_, err := LoadAll(context.Background(), &collectingAdder{}, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "took longer than")
}

// stuckLog reports a message its reader never delivers.
type stuckLog struct {
	*topicLog
}

func (l *stuckLog) Offsets(context.Context, int) (int64, int64, error) { return 0, 1, nil }

func TestKafkaAbortStopsLoad(t *testing.T) {
	src := &kafkaSource{
		topic:  "document-ingest",
		log:    ingestTopic(`{"fields":{"title":{"value":"Lucene in Action","analyzed":true}}}`),
		window: time.Second,
	}
	_, err := LoadAll(context.Background(), &collectingAdder{err: apperrors.ErrIndexFrozen}, src)
	assert.ErrorIs(t, err, apperrors.ErrIndexFrozen)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	src, closeFn, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sample", src.Name())
	assert.NoError(t, closeFn())

	cfg.Source.Kind = config.SourceFile
	cfg.Source.Path = "/data/books.jsonl"
	src, _, err = FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "file:/data/books.jsonl", src.Name())

	cfg.Source.Kind = config.SourceKafka
	src, _, err = FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "kafka:document-ingest", src.Name())

	cfg.Source.Kind = "s3"
	_, _, err = FromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion/validator"
)

const maxLineBytes = 8 << 20

type file struct {
	path string
}

// File yields one document per line of a JSON lines file of
// ingestion.DocumentEvent. Blank lines are skipped; a malformed or invalid
// line fails the load.
func File(path string) Source { return &file{path: path} }

func (f *file) Name() string { return "file:" + f.path }

func (f *file) Load(ctx context.Context, add AddFunc) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.path, err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var event ingestion.DocumentEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("%s:%d: decoding document: %w", f.path, line, err)
		}
		if err := validator.ValidateDocumentEvent(&event); err != nil {
			return fmt.Errorf("%s:%d: %w", f.path, line, err)
		}
		if err := add(event.Fields); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", f.path, err)
	}
	return nil
}

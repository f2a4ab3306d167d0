package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
)

type Reader struct {
	file   *os.File
	header Header
	dict   []DictEntry
	docs   []store.Document
}

// OpenReader opens an index file and validates its header, checksum,
// dictionary and stored documents. Postings are read on demand.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	r, err := readIndex(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func readIndex(f *os.File) (*Reader, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	if stat.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupt, stat.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	if err := header.validate(stat.Size()); err != nil {
		return nil, err
	}
	end := header.DocsOffset + header.DocsSize

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, end); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	checksum := crc32.NewIEEE()
	checksum.Write(dictBytes)
	checksum.Write(docsBytes)
	if want := binary.LittleEndian.Uint32(footer[0:4]); checksum.Sum32() != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	var docs []store.Document
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w", err)
	}
	if len(docs) != int(header.DocCount) || len(dict) != int(header.TermCount) {
		return nil, fmt.Errorf("%w: counts do not match header", ErrCorrupt)
	}
	return &Reader{
		file:   f,
		header: header,
		dict:   dict,
		docs:   docs,
	}, nil
}

// validate checks that postings, dictionary and documents follow the header
// back to back and end at the footer. The header is not checksummed.
func (h Header) validate(fileSize int64) error {
	limit := fileSize - int64(FooterSize)
	next := int64(HeaderSize)
	for _, s := range []struct {
		name         string
		offset, size int64
	}{
		{"postings", h.PostOffset, h.PostSize},
		{"dictionary", h.DictOffset, h.DictSize},
		{"documents", h.DocsOffset, h.DocsSize},
	} {
		if s.offset != next || s.size < 0 || s.size > limit-next {
			return fmt.Errorf("%w: %s section at %d+%d out of place", ErrCorrupt, s.name, s.offset, s.size)
		}
		next += s.size
	}
	if next != limit {
		return fmt.Errorf("%w: sections end at %d, footer starts at %d", ErrCorrupt, next, limit)
	}
	return nil
}

// Entries reads every postings list in dictionary order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.readPostings(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{
			Field:    d.Field,
			Term:     d.Term,
			Postings: postings,
		})
	}
	return entries, nil
}

func (r *Reader) readPostings(entry DictEntry) (index.PostingList, error) {
	if entry.PostOffset < 0 || entry.PostLen < 0 || entry.PostOffset > r.header.PostSize ||
		int64(entry.PostLen) > r.header.PostSize-entry.PostOffset {
		return nil, fmt.Errorf("%w: postings for %s:%q out of bounds", ErrCorrupt, entry.Field, entry.Term)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("%w: parsing postings for %s:%q: %v", ErrCorrupt, entry.Field, entry.Term, err)
	}
	if len(postings) != entry.DocFreq {
		return nil, fmt.Errorf("%w: document frequency mismatch for %s:%q", ErrCorrupt, entry.Field, entry.Term)
	}
	return postings, nil
}

// Documents returns the stored documents in ID order.
func (r *Reader) Documents() []store.Document {
	return r.docs
}

func (r *Reader) Close() error {
	return r.file.Close()
}

package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

// Info describes a loaded segment.
type Info struct {
	Path      string
	Terms     int
	Docs      int
	CreatedAt time.Time
}

// Segment returns the segment's file name.
func (i Info) Segment() string {
	return filepath.Base(i.Path)
}

// Open reads the segment at path fully into memory and returns it as an
// immutable index.
func Open(path string) (*index.Index, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, Info{}, fmt.Errorf("%w: segment %s is truncated", apperrors.ErrIndexCorrupt, path)
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, Info{}, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrIndexCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, Info{}, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrIndexCorrupt, header.Version)
	}
	bodyEnd := int64(len(data) - FooterSize)
	if header.PostOffset != int64(HeaderSize) ||
		header.DocsOffset != header.PostOffset+header.PostSize ||
		header.DictOffset != header.DocsOffset+header.DocsSize ||
		header.DictOffset+header.DictSize != bodyEnd {
		return nil, Info{}, fmt.Errorf("%w: inconsistent section offsets", apperrors.ErrIndexCorrupt)
	}
	footer := data[bodyEnd:]
	if sum := crc32.ChecksumIEEE(data[HeaderSize:bodyEnd]); sum != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, Info{}, fmt.Errorf("%w: checksum mismatch", apperrors.ErrIndexCorrupt)
	}

	var dict []DictEntry
	if err := json.Unmarshal(data[header.DictOffset:bodyEnd], &dict); err != nil {
		return nil, Info{}, fmt.Errorf("%w: parsing dictionary: %v", apperrors.ErrIndexCorrupt, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, Info{}, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	docsJSON, err := dec.DecodeAll(data[header.DocsOffset:header.DictOffset], nil)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: decompressing document table: %v", apperrors.ErrIndexCorrupt, err)
	}
	var table docTable
	if err := json.Unmarshal(docsJSON, &table); err != nil {
		return nil, Info{}, fmt.Errorf("%w: parsing document table: %v", apperrors.ErrIndexCorrupt, err)
	}
	if len(table.Docs) != int(header.DocCount) || len(dict) != int(header.TermCount) {
		return nil, Info{}, fmt.Errorf("%w: header counts disagree with contents", apperrors.ErrIndexCorrupt)
	}

	postBase := header.PostOffset
	postings := make(map[string]index.PostingList, len(dict))
	for _, entry := range dict {
		start := postBase + entry.PostOffset
		end := start + int64(entry.PostLen)
		if entry.PostOffset < 0 || end > header.DocsOffset {
			return nil, Info{}, fmt.Errorf("%w: postings for %q out of bounds", apperrors.ErrIndexCorrupt, entry.Term)
		}
		list, err := decodePostings(data[start:end], entry.DocFreq)
		if err != nil {
			return nil, Info{}, fmt.Errorf("%w: term %q: %v", apperrors.ErrIndexCorrupt, entry.Term, err)
		}
		postings[entry.Term] = list
	}

	idx := index.Assemble(tokenizer.ParseAnalyzer(table.Analyzer), table.Docs, postings)
	if err := idx.Validate(); err != nil {
		return nil, Info{}, err
	}
	return idx, Info{
		Path:      path,
		Terms:     len(dict),
		Docs:      len(table.Docs),
		CreatedAt: time.Unix(table.CreatedAt, 0),
	}, nil
}

// OpenLatest opens the newest segment in dir.
func OpenLatest(dir string) (*index.Index, Info, error) {
	names, err := List(dir)
	if err != nil {
		return nil, Info{}, err
	}
	if len(names) == 0 {
		return nil, Info{}, fmt.Errorf("%w: no segments in %s", apperrors.ErrIndexNotFound, dir)
	}
	return Open(filepath.Join(dir, names[len(names)-1]))
}

// List returns the segment file names in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", apperrors.ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("reading index directory: %w", err)
	}
	names := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Prune removes every segment in dir except keep and returns how many were
// removed.
func Prune(dir string, keep string) (int, error) {
	names, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if name == keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("removing stale segment %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

func decodePostings(b []byte, docFreq int) (index.PostingList, error) {
	list := make(index.PostingList, 0, docFreq)
	var doc uint64
	for len(b) > 0 {
		delta, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, fmt.Errorf("bad doc delta")
		}
		b = b[n:]
		freq, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, fmt.Errorf("bad frequency")
		}
		b = b[n:]
		doc += delta
		list = append(list, index.Posting{Doc: index.DocNum(doc), Frequency: int(freq)})
	}
	if len(list) != docFreq {
		return nil, fmt.Errorf("expected %d postings, decoded %d", docFreq, len(list))
	}
	return list, nil
}

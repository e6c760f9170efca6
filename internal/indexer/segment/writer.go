package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/klauspost/compress/zstd"
)

// MagicBytes identifies a valid .tsx segment file.
const (
	MagicBytes    uint32 = 0x54535831
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".tsx"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// docTable is the zstd-compressed JSON block holding per-document metadata.
type docTable struct {
	Analyzer  string          `json:"analyzer"`
	CreatedAt int64           `json:"created_at"`
	Docs      []index.DocInfo `json:"docs"`
}

// Writer serialises an index into new segment files.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write atomically creates a new segment file holding idx. It writes to a
// .tmp file first and renames on success.
func (w *Writer) Write(idx *index.Index) (string, error) {
	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileExt)
	finalPath := filepath.Join(w.dir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating index directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	entries := idx.Snapshot()
	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(idx.DocCount()),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	crc := crc32.NewIEEE()

	header.PostOffset = int64(HeaderSize)
	dict := make([]DictEntry, 0, len(entries))
	var relativeOffset int64
	buf := make([]byte, 0, 256)
	for _, entry := range entries {
		buf = encodePostings(buf[:0], entry.Postings)
		if _, err := f.Write(buf); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		crc.Write(buf)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: relativeOffset,
			PostLen:    len(buf),
			DocFreq:    len(entry.Postings),
		})
		relativeOffset += int64(len(buf))
	}
	header.PostSize = relativeOffset

	createdAt := time.Now().Unix()
	docsJSON, err := json.Marshal(docTable{
		Analyzer:  string(idx.Analyzer()),
		CreatedAt: createdAt,
		Docs:      idx.Docs(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling document table: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("creating zstd encoder: %w", err)
	}
	docsData := enc.EncodeAll(docsJSON, nil)
	enc.Close()
	header.DocsOffset = header.PostOffset + header.PostSize
	header.DocsSize = int64(len(docsData))
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document table: %w", err)
	}
	crc.Write(docsData)

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.DocsOffset + header.DocsSize
	header.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	crc.Write(dictData)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(createdAt))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

func encodeHeader(h SegmentHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsSize))
	return b
}

// encodePostings writes each posting as a uvarint doc-number delta
// followed by a uvarint frequency.
func encodePostings(buf []byte, postings index.PostingList) []byte {
	var prev index.DocNum
	for _, p := range postings {
		buf = binary.AppendUvarint(buf, uint64(p.Doc-prev))
		buf = binary.AppendUvarint(buf, uint64(p.Frequency))
		prev = p.Doc
	}
	return buf
}

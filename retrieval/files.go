package retrieval

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileBytes caps the size of a file loaded as a chunk.
const MaxFileBytes = 64 << 10

// LoadFiles walks paths and returns one chunk per readable text file, keyed
// by path. Hidden directories, oversized and binary files are skipped.
func LoadFiles(paths ...string) ([]Chunk, error) {
	var chunks []Chunk
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.Mode().IsRegular() || info.Size() > MaxFileBytes || info.Size() == 0 {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
				return nil
			}
			chunks = append(chunks, Chunk{
				ID:       filepath.ToSlash(path),
				Content:  string(data),
				Metadata: map[string]string{"path": filepath.ToSlash(path)},
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// NewKeywordIndexFromChunks indexes chunks in order.
func NewKeywordIndexFromChunks(chunks []Chunk) *KeywordIndex {
	idx := NewKeywordIndex()
	for _, c := range chunks {
		idx.Add(c.ID, c.Content, c.Metadata)
	}
	return idx
}

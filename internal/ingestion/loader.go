// Package ingestion reads raw booking files into rows keyed by header name.
package ingestion

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
)

// Source is a loaded input file together with the metadata the run ledger keeps.
type Source struct {
	Path      string
	Digest    string
	Delimiter rune
	Header    []string
	Rows      []domain.RawRow
}

// Load reads a delimited file into raw rows. Any failure is a SourceReadError.
func Load(path string) ([]domain.RawRow, error) {
	src, err := LoadSource(path)
	if err != nil {
		return nil, err
	}
	return src.Rows, nil
}

// LoadSource is Load plus file metadata.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.SourceReadError{Path: path, Err: err}
	}

	src, err := Parse(data)
	if err != nil {
		return nil, &domain.SourceReadError{Path: path, Err: err}
	}
	src.Path = path
	src.Digest = fmt.Sprintf("%x", sha256.Sum256(data))

	log := logging.Component("ingestion")
	log.Info().
		Str("path", path).
		Str("delimiter", string(src.Delimiter)).
		Int("columns", len(src.Header)).
		Int("rows", len(src.Rows)).
		Msg("Loaded source file")
	return src, nil
}

// Parse decodes UTF-8 data with an optional byte-order mark, detects the
// delimiter and returns the non-blank rows.
func Parse(data []byte) (*Source, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, errors.New("file is empty")
	}

	delim := SniffDelimiter(decoded)
	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = normalizeHeader(header)
	if allBlank(header) {
		return nil, errors.New("header has no column names")
	}

	src := &Source{Delimiter: delim, Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if allBlank(record) {
			continue
		}
		lineNum, _ := reader.FieldPos(0)

		row := domain.RawRow{
			Line:    lineNum,
			Columns: header,
			Values:  make(map[string]string, len(header)),
		}
		for i, col := range header {
			if i < len(record) {
				row.Values[col] = record[i]
			} else {
				row.Values[col] = ""
			}
		}
		src.Rows = append(src.Rows, row)
	}

	return src, nil
}

// normalizeHeader strips BOMs and whitespace from every name and suffixes
// repeated names with .1, .2, ... so no column is lost.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteCSV writes the matrix as comma-separated text.
func (m Matrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(m.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// CSV returns the matrix rendered by WriteCSV.
func (m Matrix) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadMatrixCSV parses a matrix written by WriteCSV. The first header cell
// may be "Field" or "FIELD"; it is normalised to FieldHeader.
func ReadMatrixCSV(r io.Reader) (Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return Matrix{}, fmt.Errorf("read matrix: %w", err)
	}
	if len(records) == 0 {
		return Matrix{}, fmt.Errorf("matrix is empty")
	}
	header := records[0]
	if !strings.EqualFold(strings.TrimSpace(header[0]), FieldHeader) {
		return Matrix{}, fmt.Errorf("matrix first column is %q, want %q", header[0], FieldHeader)
	}
	header[0] = FieldHeader

	m := Matrix{Header: header, Rows: make([][]string, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if len(rec) > len(header) {
			return Matrix{}, fmt.Errorf("matrix row %d has %d cells, header has %d", i+2, len(rec), len(header))
		}
		row := make([]string, len(header))
		copy(row, rec)
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// MarshalJSON renders {"pairs": [...]} with side keys taken from the labels
// and fields in their recorded order.
func (n Nested) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"pairs":[`)
	for i, p := range n.Pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writePair(&buf, p, n.Labels)
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// PairJSON renders a single pair the way it appears inside the nested view.
func PairJSON(p NestedPair, labels Labels) []byte {
	var buf bytes.Buffer
	writePair(&buf, p, labels)
	return buf.Bytes()
}

func writePair(buf *bytes.Buffer, p NestedPair, labels Labels) {
	buf.WriteString(`{"id":`)
	writeString(buf, p.ID)
	buf.WriteByte(',')
	writeString(buf, labels.Owner)
	buf.WriteByte(':')
	writeSide(buf, p.Owner)
	buf.WriteByte(',')
	writeString(buf, labels.Custodian)
	buf.WriteByte(':')
	writeSide(buf, p.Custodian)
	buf.WriteByte('}')
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func writeSide(buf *bytes.Buffer, sv SideValues) {
	buf.WriteByte('{')
	for i, k := range sv.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		writeString(buf, sv.Values[k])
	}
	buf.WriteByte('}')
}

// JSON returns the nested view indented with two spaces and a trailing newline.
func (n Nested) JSON() ([]byte, error) {
	compact, err := n.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// DecodeNested parses a nested document, keeping field order.
func DecodeNested(data []byte, labels Labels) (Nested, error) {
	var doc struct {
		Pairs []map[string]json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Nested{}, fmt.Errorf("decode nested: %w", err)
	}
	if doc.Pairs == nil {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil || probe["pairs"] == nil {
			return Nested{}, fmt.Errorf("decode nested: missing \"pairs\" key")
		}
	}

	n := Nested{Labels: labels, Pairs: make([]NestedPair, 0, len(doc.Pairs))}
	for i, raw := range doc.Pairs {
		var p NestedPair
		if err := json.Unmarshal(raw["id"], &p.ID); err != nil {
			return Nested{}, fmt.Errorf("pair %d: id: %w", i, err)
		}
		var err error
		if p.Owner, err = decodeSide(raw[labels.Owner]); err != nil {
			return Nested{}, fmt.Errorf("pair %d: %s: %w", i, labels.Owner, err)
		}
		if p.Custodian, err = decodeSide(raw[labels.Custodian]); err != nil {
			return Nested{}, fmt.Errorf("pair %d: %s: %w", i, labels.Custodian, err)
		}
		n.Pairs = append(n.Pairs, p)
	}
	return n, nil
}

func decodeSide(raw json.RawMessage) (SideValues, error) {
	sv := SideValues{Values: map[string]string{}}
	if len(raw) == 0 || string(raw) == "null" {
		return sv, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return sv, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return sv, fmt.Errorf("expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return sv, err
		}
		key := tok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return sv, err
		}
		if _, dup := sv.Values[key]; !dup {
			sv.Keys = append(sv.Keys, key)
		}
		sv.Values[key] = stringify(val)
	}
	return sv, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// WriteXLSX renders the matrix as a single-sheet workbook.
func (m Matrix) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Pairs"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := append([][]string{m.Header}, m.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 1, TopLeftCell: "B2", ActivePane: "bottomRight"}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}
	return f.Write(w)
}

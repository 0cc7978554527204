package attachment

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// options mirrors the attachment.options object.
type options struct {
	Fields           []string `json:"fields,omitempty"`
	Delimiter        string   `json:"delimiter,omitempty"`
	Header           *bool    `json:"header,omitempty"`
	Flatten          bool     `json:"flatten,omitempty"`
	FlattenSeparator string   `json:"flattenSeparator,omitempty"`
}

// field is one key/value pair of a JSON object, kept in document order.
type field struct {
	key   string
	value gjson.Result
}

// record is a JSON object that remembers the order of its keys.
type record []field

func isAbsent(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null"
}

func parseOptions(raw json.RawMessage) (options, error) {
	var opts options
	if isAbsent(raw) {
		return opts, nil
	}
	if firstByte(raw) != '{' {
		return opts, ErrOptionsInvalid
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrOptionsInvalid, err)
	}
	if opts.Delimiter != "" && utf8.RuneCountInString(opts.Delimiter) != 1 {
		return opts, fmt.Errorf("%w: delimiter must be a single character", ErrOptionsInvalid)
	}
	return opts, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// encodeCSV writes rows from a JSON object (one row) or an array of objects.
func encodeCSV(raw json.RawMessage, opts options) ([]byte, error) {
	rows, err := parseRows(raw)
	if err != nil {
		return nil, err
	}

	sep := opts.FlattenSeparator
	if sep == "" {
		sep = "."
	}
	if opts.Flatten {
		for i, row := range rows {
			rows[i] = flatten(row, "", sep)
		}
	}

	columns := opts.Fields
	if len(columns) == 0 {
		columns = collectColumns(rows)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: data should not be empty or fields should be given", ErrSerialization)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if opts.Delimiter != "" {
		w.Comma, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}

	if opts.Header == nil || *opts.Header {
		if err := w.Write(columns); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = formatValue(row.get(col))
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (r record) get(key string) gjson.Result {
	for _, f := range r {
		if f.key == key {
			return f.value
		}
	}
	return gjson.Result{}
}

func collectColumns(rows []record) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for _, f := range row {
			if _, ok := seen[f.key]; ok {
				continue
			}
			seen[f.key] = struct{}{}
			columns = append(columns, f.key)
		}
	}
	return columns
}

func flatten(r record, prefix, sep string) record {
	var out record
	for _, f := range r {
		key := f.key
		if prefix != "" {
			key = prefix + sep + f.key
		}
		if f.value.IsObject() {
			out = append(out, flatten(readObject(f.value), key, sep)...)
			continue
		}
		out = append(out, field{key: key, value: f.value})
	}
	return out
}

// formatValue renders a cell. Numbers keep their source text and nested
// arrays or objects are written as compact JSON.
func formatValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return gjson.Get(v.Raw, "@ugly").Raw
	}
}

// parseRows reads raw as an ordered object or array of ordered objects.
func parseRows(raw json.RawMessage) ([]record, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrFormatInvalid)
	}

	res := gjson.ParseBytes(raw)
	switch {
	case res.IsObject():
		return []record{readObject(res)}, nil

	case res.IsArray():
		elems := res.Array()
		rows := make([]record, 0, len(elems))
		for i, elem := range elems {
			if !elem.IsObject() {
				return nil, fmt.Errorf("%w: row %d is not an object", ErrFormatInvalid, i)
			}
			rows = append(rows, readObject(elem))
		}
		return rows, nil

	default:
		return nil, ErrFormatInvalid
	}
}

func readObject(obj gjson.Result) record {
	rec := record{}
	obj.ForEach(func(key, value gjson.Result) bool {
		rec = append(rec, field{key: key.String(), value: value})
		return true
	})
	return rec
}

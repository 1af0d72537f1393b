package parsley

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// GenerationOutput is the canonical extraction result. JSON results carry
// Data only; CSV results also carry Rows, a projection derived exactly once
// from Data (header row followed by stringified value rows).
type GenerationOutput struct {
	Format OutputFormat `json:"format"`
	Data   any          `json:"data"`
	Rows   [][]string   `json:"rows,omitempty"`
}

// NormalizeJSON maps a structured result to the canonical JSON output. For
// array-typed schemas a bare object is wrapped in a single-element array:
// models occasionally return one object when exactly one item matches, and
// that leniency is deliberate. Normalizing an existing array is a no-op, so
// the coercion is idempotent.
func NormalizeJSON(result *StructuredResult, jsonType JSONType) GenerationOutput {
	data := result.Value
	if jsonType == JSONArray {
		if _, ok := data.([]any); !ok {
			data = []any{data}
		}
	}
	return GenerationOutput{Format: FormatJSON, Data: data}
}

// NormalizeCSV maps a structured result to the canonical CSV output. The
// raw result must be an array of flat records; a lone record is wrapped the
// same way bare objects are for JSON arrays. Column order follows the first
// record's own key order, recovered from the raw JSON text since decoded
// maps discard it. An empty result yields empty rows with no header-only
// row.
func NormalizeCSV(result *StructuredResult) (GenerationOutput, error) {
	var records []any
	switch v := result.Value.(type) {
	case []any:
		records = v
	case map[string]any:
		records = []any{v}
	default:
		return GenerationOutput{}, NewError(KindValidation, "CSV extraction returned %T, expected an array of records", result.Value)
	}

	out := GenerationOutput{Format: FormatCSV, Data: records, Rows: [][]string{}}
	if len(records) == 0 {
		return out, nil
	}

	first, ok := records[0].(map[string]any)
	if !ok {
		return GenerationOutput{}, NewError(KindValidation, "CSV extraction returned non-record element %T", records[0])
	}
	keys := firstRecordKeyOrder(result.Raw)
	if len(keys) == 0 {
		for k := range first {
			keys = append(keys, k)
		}
	}

	out.Rows = append(out.Rows, keys)
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			return GenerationOutput{}, NewError(KindValidation, "CSV extraction returned non-record element %T", rec)
		}
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = stringifyCell(m[k])
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// firstRecordKeyOrder scans raw JSON of the form [{...}, ...] and returns
// the first record's keys in declared order.
func firstRecordKeyOrder(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch d {
	case '{': // lone record, tolerated
		return objectKeys(dec)
	case '[':
		tok, err = dec.Token()
		if err != nil {
			return nil
		}
		if d2, ok := tok.(json.Delim); ok && d2 == '{' {
			return objectKeys(dec)
		}
		return nil
	default:
		return nil
	}
}

// objectKeys reads keys of the object the decoder is inside of, skipping
// each value.
func objectKeys(dec *json.Decoder) []string {
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
		keys = append(keys, key)
	}
	return keys
}

// stringifyCell coerces one record value for a CSV cell; missing and null
// values become the empty string.
func stringifyCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

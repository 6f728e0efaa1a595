package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// CSVParser reads delimited roster exports. The exports in the wild arrive
// in UTF-8 (with or without BOM), GBK or GB18030, so decoding tries a
// prioritized list before giving up.
type CSVParser struct {
	decoders []*encoding.Decoder
}

func NewCSVParser() *CSVParser {
	return &CSVParser{
		decoders: []*encoding.Decoder{
			unicode.UTF8.NewDecoder(),
			simplifiedchinese.GB18030.NewDecoder(),
			simplifiedchinese.GBK.NewDecoder(),
		},
	}
}

func (p *CSVParser) Parse(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	raw = stripBOM(raw)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Reason: "file is empty"}
	}

	text, err := p.decode(raw)
	if err != nil {
		return nil, &ParseError{Reason: "undecodable content: " + err.Error()}
	}

	var headers []string
	var rows []Row
	// Each physical line is parsed on its own so a malformed row, such as
	// an unterminated quote, never swallows the remainder of the file.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := parseCSVLine(line)
		if err != nil {
			// Skip malformed lines; a parse only fails when nothing at all
			// is recoverable.
			continue
		}
		if blankRecord(record) {
			continue
		}
		if headers == nil {
			headers = trimAll(record)
			continue
		}
		cols := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				cols[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, Row{Columns: cols})
	}

	if headers == nil {
		return nil, &ParseError{Reason: "no header row found"}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Reason: "no data rows recovered"}
	}
	return &Table{Headers: headers, Rows: rows}, nil
}

// decode tries each configured encoding in order. UTF-8 is accepted only
// when the bytes are actually valid UTF-8, otherwise the legacy encodings
// get their chance.
func (p *CSVParser) decode(raw []byte) (string, error) {
	var lastErr error
	for i, dec := range p.decoders {
		if i == 0 && !utf8.Valid(raw) {
			continue
		}
		out, err := dec.Bytes(raw)
		if err == nil {
			return string(out), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		// Nothing decoded and nothing errored: raw was invalid UTF-8 and no
		// fallback produced output.
		return string(raw), nil
	}
	return "", lastErr
}

func parseCSVLine(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	return reader.Read()
}

func stripBOM(raw []byte) []byte {
	return bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultSampleRows bounds how many data rows are read for type inference.
// Header extraction always reads exactly one record regardless of this.
const DefaultSampleRows = 200

// maxConsecutiveReadErrors aborts sampling when the reader fails repeatedly
// without yielding a row, e.g. an I/O error mid-file.
const maxConsecutiveReadErrors = 25

// ColumnKind is the inferred type of a column, derived from a row sample.
type ColumnKind string

const (
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
	KindBoolean ColumnKind = "boolean"
	KindString  ColumnKind = "string"
	KindUnknown ColumnKind = "unknown"
)

// Column is the profile of a single dataset column.
type Column struct {
	Name         string
	Kind         ColumnKind
	Distinct     int
	MissingRate  float64
	LikelyID     bool
	LikelyBinary bool
}

// Profile is the schema-level description of a dataset.
type Profile struct {
	Path        string
	Columns     []Column
	SampledRows int
}

// ColumnNames returns the column names in file order.
func (p *Profile) ColumnNames() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the dataset contains the named column.
func (p *Profile) Has(name string) bool {
	for _, c := range p.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Column returns the profile of the named column.
func (p *Profile) Column(name string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// missing values accepted as absent, mirroring common R/statistics exports.
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true,
	".": true, "?": true, "none": true,
}

// Load reads the header and up to sampleRows data rows of a CSV file and
// infers a per-column profile. sampleRows <= 0 uses DefaultSampleRows.
// Short or ragged files are tolerated; unreadable files return an error.
func Load(path string, sampleRows int) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	return profileReader(f, path, sampleRows)
}

// profileReader infers the profile from an already-open CSV source.
func profileReader(src io.Reader, path string, sampleRows int) (*Profile, error) {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1 // tolerate ragged rows
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading dataset header: %w", err)
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: strings.TrimSpace(name), Kind: KindUnknown}
	}

	distinct := make([]map[string]bool, len(header))
	missing := make([]int, len(header))
	intOK := make([]bool, len(header))
	floatOK := make([]bool, len(header))
	boolOK := make([]bool, len(header))
	for i := range header {
		distinct[i] = make(map[string]bool)
		intOK[i], floatOK[i], boolOK[i] = true, true, true
	}

	rows := 0
	readErrs := 0
	for rows < sampleRows {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed row mid-sample does not invalidate the schema,
			// but a reader that keeps failing without advancing would
			// loop forever. Give up after repeated consecutive errors.
			readErrs++
			if readErrs >= maxConsecutiveReadErrors {
				return nil, fmt.Errorf("reading dataset rows: %w", err)
			}
			continue
		}
		readErrs = 0
		rows++
		for i := 0; i < len(cols) && i < len(record); i++ {
			v := strings.TrimSpace(record[i])
			if missingTokens[strings.ToLower(v)] {
				missing[i]++
				continue
			}
			distinct[i][v] = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				intOK[i] = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				floatOK[i] = false
			}
			switch strings.ToLower(v) {
			case "true", "false", "0", "1":
			default:
				boolOK[i] = false
			}
		}
	}

	for i := range cols {
		n := len(distinct[i])
		cols[i].Distinct = n
		if rows > 0 {
			cols[i].MissingRate = float64(missing[i]) / float64(rows)
		}
		switch {
		case n == 0:
			cols[i].Kind = KindUnknown
		case boolOK[i] && n <= 2:
			cols[i].Kind = KindBoolean
		case intOK[i]:
			cols[i].Kind = KindInteger
		case floatOK[i]:
			cols[i].Kind = KindFloat
		default:
			cols[i].Kind = KindString
		}
		cols[i].LikelyBinary = n == 2
		cols[i].LikelyID = rows >= 20 && n >= rows*9/10 && cols[i].Kind != KindFloat
	}

	return &Profile{Path: path, Columns: cols, SampledRows: rows}, nil
}

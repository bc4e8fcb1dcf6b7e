// CLAUDE:SUMMARY Import adapter for the ASIC company register (tab-separated, windows-1252), keyed by ABN.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

func init() {
	Register(&asicCompaniesAdapter{encoding: "windows-1252"})
}

type asicCompaniesAdapter struct {
	encoding string
}

func (a *asicCompaniesAdapter) ID() string          { return "asic-companies-au" }
func (a *asicCompaniesAdapter) Description() string { return "ASIC company register (current names with ABN)" }
func (a *asicCompaniesAdapter) DefaultURL() string {
	return "https://data.gov.au/data/dataset/asic-companies"
}
func (a *asicCompaniesAdapter) License() string { return "CC BY 3.0 AU" }

func (a *asicCompaniesAdapter) Import(ctx context.Context, sourceURL string, sink Sink) (int, error) {
	dir, err := os.MkdirTemp("", "asic-companies-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	slog.Info("downloading ASIC company register", "url", sourceURL)
	files, err := fetch(ctx, sourceURL, dir)
	if err != nil {
		return 0, err
	}
	files = filterExt(files, ".csv", ".txt", ".tsv")
	if len(files) == 0 {
		return 0, fmt.Errorf("no CSV found in download")
	}

	b := newBatcher(sink)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return b.total, err
		}
		n, skipped, err := a.parse(ctx, f, b)
		f.Close()
		if err != nil {
			return b.total, fmt.Errorf("parse %s: %w", path, err)
		}
		slog.Info("ASIC file parsed", "file", path, "records", n, "skipped", skipped)
	}
	if err := b.flush(ctx); err != nil {
		return b.total, err
	}
	return b.total, nil
}

// asicEntityTypes maps ASIC company type codes to ABR entity type names.
var asicEntityTypes = map[string]string{
	"APTY": "Australian Private Company",
	"APUB": "Australian Public Company",
	"FNOS": "Foreign Company",
}

// parse reads the register in streaming mode. Only rows flagged as the
// current name and carrying an ABN are kept.
func (a *asicCompaniesAdapter) parse(ctx context.Context, src io.Reader, b *batcher) (n, skipped int, err error) {
	var reader io.Reader = src
	if a.encoding != "" && !isUTF8(a.encoding) {
		e, err := htmlindex.Get(a.encoding)
		if err != nil {
			return 0, 0, fmt.Errorf("unsupported encoding %q: %w", a.encoding, err)
		}
		reader = transform.NewReader(src, e.NewDecoder())
	}

	r := csv.NewReader(reader)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int)
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	col := func(record []string, name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	if _, ok := colIdx["company name"]; !ok {
		return 0, 0, fmt.Errorf("column 'Company Name' not found in header")
	}
	if _, ok := colIdx["abn"]; !ok {
		return 0, 0, fmt.Errorf("column 'ABN' not found in header")
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if ctx.Err() != nil {
			return n, skipped, ctx.Err()
		}

		if ind := col(record, "current name indicator"); ind != "" && !strings.EqualFold(ind, "Y") {
			skipped++
			continue
		}
		id, verr := abn.Validate(abn.ModeIdentifier, col(record, "abn"))
		name := col(record, "company name")
		if verr != nil || name == "" {
			skipped++
			continue
		}

		rec := abn.Record{
			ABN:        id,
			Name:       name,
			EntityType: asicEntityTypes[strings.ToUpper(col(record, "type"))],
			Attributes: map[string]string{},
		}
		if acn := col(record, "acn"); acn != "" {
			rec.Attributes["acn"] = acn
		}
		if st := col(record, "status"); st != "" {
			rec.Attributes["asic_status"] = st
		}
		if d := col(record, "date of registration"); d != "" {
			rec.Attributes["registered"] = d
		}
		if err := b.add(ctx, rec); err != nil {
			return n, skipped, err
		}
		n++
	}
	return n, skipped, nil
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}

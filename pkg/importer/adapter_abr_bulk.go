// CLAUDE:SUMMARY Import adapter for the ABR public bulk extract (zipped XML), streaming one <ABR> element at a time.
package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

func init() {
	Register(&abrBulkAdapter{})
}

type abrBulkAdapter struct{}

func (a *abrBulkAdapter) ID() string          { return "abr-bulk-au" }
func (a *abrBulkAdapter) Description() string { return "ABN Bulk Extract (public XML, data.gov.au)" }
func (a *abrBulkAdapter) DefaultURL() string {
	return "https://data.gov.au/data/dataset/abn-bulk-extract"
}
func (a *abrBulkAdapter) License() string { return "CC BY 3.0 AU" }

func (a *abrBulkAdapter) Import(ctx context.Context, sourceURL string, sink Sink) (int, error) {
	dir, err := os.MkdirTemp("", "abr-bulk-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	slog.Info("downloading ABR bulk extract", "url", sourceURL)
	files, err := fetch(ctx, sourceURL, dir)
	if err != nil {
		return 0, err
	}
	files = filterExt(files, ".xml")
	if len(files) == 0 {
		return 0, fmt.Errorf("no XML found in download")
	}

	b := newBatcher(sink)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return b.total, err
		}
		n, err := parseABRBulk(ctx, f, b)
		f.Close()
		if err != nil {
			return b.total, fmt.Errorf("parse %s: %w", path, err)
		}
		slog.Info("ABR bulk file parsed", "file", path, "records", n)
	}
	if err := b.flush(ctx); err != nil {
		return b.total, err
	}
	return b.total, nil
}

// abrElement mirrors one <ABR> record of the public bulk extract.
type abrElement struct {
	ABN struct {
		Status string `xml:"status,attr"`
		From   string `xml:"ABNStatusFromDate,attr"`
		Value  string `xml:",chardata"`
	} `xml:"ABN"`
	EntityType struct {
		Ind  string `xml:"EntityTypeInd"`
		Text string `xml:"EntityTypeText"`
	} `xml:"EntityType"`
	MainEntity *struct {
		Name    nonIndividualName `xml:"NonIndividualName"`
		Address addressDetails    `xml:"BusinessAddress>AddressDetails"`
	} `xml:"MainEntity"`
	LegalEntity *struct {
		Name struct {
			Given  []string `xml:"GivenName"`
			Family string   `xml:"FamilyName"`
		} `xml:"IndividualName"`
		Address addressDetails `xml:"BusinessAddress>AddressDetails"`
	} `xml:"LegalEntity"`
	ASICNumber string `xml:"ASICNumber"`
	GST        struct {
		Status string `xml:"status,attr"`
		From   string `xml:"GSTStatusFromDate,attr"`
	} `xml:"GST"`
	OtherEntity []struct {
		Name nonIndividualName `xml:"NonIndividualName"`
	} `xml:"OtherEntity"`
}

type nonIndividualName struct {
	Type string `xml:"type,attr"`
	Text string `xml:"NonIndividualNameText"`
}

type addressDetails struct {
	State    string `xml:"State"`
	Postcode string `xml:"Postcode"`
}

// parseABRBulk streams <ABR> elements from r into b and returns how many
// records were produced.
func parseABRBulk(ctx context.Context, r io.Reader, b *batcher) (int, error) {
	dec := xml.NewDecoder(r)
	var n int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "ABR" {
			continue
		}
		if ctx.Err() != nil {
			return n, ctx.Err()
		}

		var el abrElement
		if err := dec.DecodeElement(&el, &se); err != nil {
			return n, err
		}
		rec, ok := el.record()
		if !ok {
			continue
		}
		if err := b.add(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
}

// record converts the element. Elements without an 11-digit ABN are dropped.
func (el *abrElement) record() (abn.Record, bool) {
	id := abn.StripSpace(el.ABN.Value)
	if _, err := abn.Validate(abn.ModeIdentifier, id); err != nil {
		return abn.Record{}, false
	}

	rec := abn.Record{
		ABN:        id,
		Status:     abrStatus(el.ABN.Status),
		EntityType: strings.TrimSpace(el.EntityType.Text),
	}

	switch {
	case el.MainEntity != nil:
		rec.Name = strings.TrimSpace(el.MainEntity.Name.Text)
		rec.State = el.MainEntity.Address.State
		rec.Postcode = el.MainEntity.Address.Postcode
	case el.LegalEntity != nil:
		rec.Name = individualName(el.LegalEntity.Name.Family, el.LegalEntity.Name.Given)
		rec.State = el.LegalEntity.Address.State
		rec.Postcode = el.LegalEntity.Address.Postcode
	}
	if rec.Name == "" {
		return abn.Record{}, false
	}

	if el.GST.Status == "ACT" {
		rec.GST = isoDate(el.GST.From)
	}
	for _, oe := range el.OtherEntity {
		if name := strings.TrimSpace(oe.Name.Text); name != "" {
			rec.BusinessNames = append(rec.BusinessNames, name)
		}
	}

	attrs := map[string]string{}
	if acn := strings.TrimSpace(el.ASICNumber); acn != "" {
		attrs["acn"] = acn
	}
	if el.EntityType.Ind != "" {
		attrs["entity_type_code"] = el.EntityType.Ind
	}
	if el.ABN.From != "" {
		attrs["status_from"] = isoDate(el.ABN.From)
	}
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}
	return rec, true
}

// individualName renders "FAMILY, GIVEN MIDDLE" as the ABR web services do.
func individualName(family string, given []string) string {
	family = strings.TrimSpace(family)
	g := strings.TrimSpace(strings.Join(given, " "))
	switch {
	case family == "":
		return g
	case g == "":
		return family
	default:
		return family + ", " + g
	}
}

func abrStatus(code string) string {
	switch code {
	case "ACT":
		return "Active"
	case "CAN":
		return "Cancelled"
	default:
		return code
	}
}

// isoDate turns YYYYMMDD into YYYY-MM-DD; other inputs are returned as is.
func isoDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
}

package delivery

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Record is one sold lead ready for export to a buyer.
type Record struct {
	Lead  *lead.Lead   `json:"lead"`
	Score *lead.Score  `json:"score"`
	Price values.Money `json:"price"`
}

// defaultFieldMapping is used for buyers with no contractual mapping.
var defaultFieldMapping = []buyer.FieldMap{
	{Column: "lead_id", Field: "lead_id"},
	{Column: "score", Field: "score"},
	{Column: "tier", Field: "tier"},
	{Column: "borough", Field: "borough"},
	{Column: "zip_code", Field: "zip_code"},
	{Column: "home_type", Field: "home_type"},
	{Column: "price", Field: "price"},
}

// fieldValue resolves one mapped field name to its string form. Unknown
// fields export empty, never error; a buyer adding a column we do not have
// must not break delivery.
func fieldValue(r Record, field string) string {
	switch field {
	case "lead_id":
		return r.Lead.ID.String()
	case "session_id":
		return r.Lead.SessionID
	case "score":
		return strconv.Itoa(r.Lead.Score)
	case "tier":
		return r.Lead.Tier.String()
	case "borough":
		return r.Lead.Borough
	case "zip_code":
		return r.Lead.ZipCode
	case "home_type":
		return r.Lead.HomeType
	case "price":
		return fmt.Sprintf("%.2f", r.Price.ToFloat64())
	case "revenue_potential":
		if r.Score != nil {
			return fmt.Sprintf("%.2f", r.Score.RevenuePotential.ToFloat64())
		}
	case "conversion_probability":
		if r.Score != nil {
			return fmt.Sprintf("%.3f", r.Score.ConversionProbability)
		}
	case "routed_at":
		return r.Lead.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return ""
}

// ExportCSV renders records as CSV in the buyer's contractual column order.
// The first row is the header; column order follows the mapping exactly
// because several buyers ingest positionally.
func ExportCSV(records []Record, mapping []buyer.FieldMap) ([]byte, error) {
	if len(mapping) == 0 {
		mapping = defaultFieldMapping
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(mapping))
	for i, m := range mapping {
		header[i] = m.Column
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(mapping))
	for _, r := range records {
		for i, m := range mapping {
			row[i] = fieldValue(r, m.Field)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON renders records as a JSON array of nested lead entities.
func ExportJSON(records []Record) ([]byte, error) {
	return json.Marshal(records)
}

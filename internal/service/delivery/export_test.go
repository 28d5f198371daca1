package delivery

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
	"github.com/brightlead/solar-lead-exchange-backend/internal/testutil"
)

func testRecord(t *testing.T) Record {
	t.Helper()
	return Record{
		Lead:  testutil.QualifiedLead("session-1", 92),
		Score: testutil.Score("session-1", 92),
		Price: values.USDFromFloat(187.5),
	}
}

func TestExportCSVDefaultMapping(t *testing.T) {
	rec := testRecord(t)
	out, err := ExportCSV([]Record{rec}, nil)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"lead_id", "score", "tier", "borough", "zip_code", "home_type", "price"}, rows[0])
	assert.Equal(t, rec.Lead.ID.String(), rows[1][0])
	assert.Equal(t, "92", rows[1][1])
	assert.Equal(t, "premium", rows[1][2])
	assert.Equal(t, "manhattan", rows[1][3])
	assert.Equal(t, "10021", rows[1][4])
	assert.Equal(t, "townhouse", rows[1][5])
	assert.Equal(t, "187.50", rows[1][6])
}

func TestExportCSVHonorsColumnOrder(t *testing.T) {
	// Several buyers ingest positionally; the mapping order is contractual.
	mapping := []buyer.FieldMap{
		{Column: "Price (USD)", Field: "price"},
		{Column: "ID", Field: "lead_id"},
		{Column: "Quality", Field: "tier"},
	}

	out, err := ExportCSV([]Record{testRecord(t)}, mapping)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Price (USD)", "ID", "Quality"}, rows[0])
	assert.Equal(t, "187.50", rows[1][0])
	assert.Equal(t, "premium", rows[1][2])
}

func TestExportCSVUnknownFieldIsEmpty(t *testing.T) {
	mapping := []buyer.FieldMap{
		{Column: "lead_id", Field: "lead_id"},
		{Column: "shoe_size", Field: "shoe_size"},
	}

	out, err := ExportCSV([]Record{testRecord(t)}, mapping)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "", rows[1][1], "a column we cannot fill must not break delivery")
}

func TestExportJSONShape(t *testing.T) {
	rec := testRecord(t)
	out, err := ExportJSON([]Record{rec})
	require.NoError(t, err)

	var decoded []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 1)
	assert.Contains(t, decoded[0], "lead")
	assert.Contains(t, decoded[0], "score")
	assert.Contains(t, decoded[0], "price")
}

package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/server/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() []*api.Complaint {
	created := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	return []*api.Complaint{
		{
			Id:          "c1",
			Title:       "Pothole, large",
			Description: "Deep \"crater\" near the school",
			Address:     "123 Main St",
			Status:      lifecycle.StatusAssigned,
			Priority:    lifecycle.PriorityHigh,
			Upvotes:     4,
			Downvotes:   1,
			CreatedAt:   created,
			UpdatedAt:   created,
			Reporter:    &api.Person{Name: "Ann", Email: "ann@example.com"},
			Assignee:    &api.Person{Name: "Vic"},
		},
		{
			Id:       "c2",
			Title:    "Bins",
			Status:   lifecycle.StatusReceived,
			Priority: lifecycle.PriorityLow,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, headers, records[0])
	assert.Equal(t, "Pothole, large", records[1][1])
	assert.Equal(t, "Deep \"crater\" near the school", records[1][2])
	assert.Equal(t, "Vic", records[1][7])
	assert.Equal(t, "Jan 5, 2025", records[1][9])
	assert.Equal(t, "4", records[1][11])
	assert.Equal(t, "N/A", records[2][5])
	assert.Equal(t, "Unassigned", records[2][7])
	assert.Equal(t, "N/A", records[2][9])
}

func TestExcel(t *testing.T) {
	data, err := Excel(sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Complaint ID", rows[0][0])
	assert.Equal(t, "c1", rows[1][0])
	assert.Equal(t, "assigned", rows[1][3])
	assert.Equal(t, "Unassigned", rows[2][7])
}

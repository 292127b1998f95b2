package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerbooks/internal/platform"
	"sellerbooks/internal/storage"
	"sellerbooks/internal/worksheet"
)

func TestProcessFileRecordsRunAndFillsWorksheet(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	input := filepath.Join(tmp, "uk_march.csv")
	csv := "date/time,type,product sales,product sales tax,selling fees\n" +
		"01/03/2024,Order,\"1,000.00\",200.00,-150.00\n" +
		"02/03/2024,Order,500.00,100.00,-75.50\n"
	if err := os.WriteFile(input, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	sheet := worksheet.New()
	proc := NewProcessingService(newTestExtractor(), db, sheet)
	res, err := proc.ProcessFile(input, "uk")
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.NotZero(t, res.DocumentID)
	assertAmount(t, "1500.00", res.Outcome.Result.Figures.Income)

	income, _ := sheet.Cell(platform.TableSales, 7, 10)
	assert.Equal(t, "1500.00 GBP", income.Text)
	bills, _ := sheet.Cell(platform.TableBills, 6, 9)
	assert.Equal(t, "225.50 GBP", bills.Text)

	done, err := proc.AlreadyProcessed(res.Hash)
	require.NoError(t, err)
	assert.True(t, done)

	history, err := db.ListExtractions(5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.RunID, history[0].RunID)
	assert.Equal(t, "uk_march.csv", history[0].DocumentName)
}

func TestProcessDocumentWithoutRunLog(t *testing.T) {
	proc := NewProcessingService(newTestExtractor(), nil, nil)
	res, err := proc.ProcessDocument("statement.txt", []byte("nothing here"), "it")
	require.NoError(t, err)
	assert.True(t, res.Outcome.Result.UsedFallback)
	assert.True(t, proc.Worksheet().HasData())

	done, err := proc.AlreadyProcessed(res.Hash)
	require.NoError(t, err)
	assert.False(t, done)
}

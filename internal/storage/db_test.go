package storage

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerbooks/internal"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertDocumentDedupesByHash(t *testing.T) {
	db := openTest(t)

	first, err := db.UpsertDocument("abc", "uk_march.pdf", "pdf", "uk", "received")
	require.NoError(t, err)
	second, err := db.UpsertDocument("abc", "uk_march_copy.pdf", "pdf", "uk", "received")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "uk_march_copy.pdf", second.Name)

	done, err := db.IsProcessed("abc")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, db.UpdateDocumentStatus(first.ID, "processed"))
	done, err = db.IsProcessed("abc")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = db.IsProcessed("missing")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestExtractionHistoryKeepsDecimals(t *testing.T) {
	db := openTest(t)
	doc, err := db.UpsertDocument("h1", "report.csv", "csv", "it", "received")
	require.NoError(t, err)

	res := internal.ExtractionResult{
		PlatformID:   "it",
		PlatformName: "Amazon IT",
		CurrencyCode: "EUR",
		Figures: internal.FinancialFigures{
			Income:   decimal.RequireFromString("1234.56"),
			Expenses: decimal.RequireFromString("-0.10"),
			Tax:      decimal.Zero,
		},
		Confidence: internal.UniformConfidence(internal.ConfidenceHigh),
		Warnings:   []string{"expenses 0.10 were positive, negated"},
	}
	_, err = db.InsertExtraction("run-1", doc.ID, res)
	require.NoError(t, err)

	fb := res
	fb.UsedFallback = true
	fb.FallbackReason = internal.FallbackAllZero
	fb.Warnings = nil
	_, err = db.InsertExtraction("run-2", doc.ID, fb)
	require.NoError(t, err)

	rows, err := db.ListExtractions(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	latest := rows[0]
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, "report.csv", latest.DocumentName)
	assert.True(t, latest.Result.UsedFallback)
	assert.Equal(t, internal.FallbackAllZero, latest.Result.FallbackReason)
	assert.Empty(t, latest.Result.Warnings)

	older := rows[1]
	assert.True(t, older.Result.Figures.Income.Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, older.Result.Figures.Expenses.Equal(decimal.RequireFromString("-0.10")))
	assert.Equal(t, internal.ConfidenceHigh, older.Result.Confidence.Tax)
	assert.Equal(t, []string{"expenses 0.10 were positive, negated"}, older.Result.Warnings)

	limited, err := db.ListExtractions(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"sellerbooks/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  hash TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  format TEXT NOT NULL,
  platform TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'received',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS extractions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  documentId INTEGER NOT NULL,
  platform TEXT NOT NULL,
  platformName TEXT NOT NULL,
  currency TEXT NOT NULL,
  income TEXT NOT NULL,
  expenses TEXT NOT NULL,
  tax TEXT NOT NULL,
  confidenceJson TEXT NOT NULL,
  usedFallback INTEGER NOT NULL,
  fallbackReason TEXT NOT NULL DEFAULT '',
  warningsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);
CREATE INDEX IF NOT EXISTS idx_extractions_run ON extractions(runId);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertDocument records a report by content hash; a known hash keeps its
// row and only refreshes name and platform.
func (d *DB) UpsertDocument(hash, name, format, platformID, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (hash, name, format, platform, status)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  name=excluded.name,
  platform=excluded.platform,
  updatedAt=CURRENT_TIMESTAMP
`, hash, name, format, platformID, status)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByHash(hash)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func (d *DB) GetDocumentByHash(hash string) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`
SELECT id, hash, name, format, platform, status, createdAt
FROM documents WHERE hash = ?
`, hash).Scan(&row.ID, &row.Hash, &row.Name, &row.Format, &row.Platform, &row.Status, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IsProcessed reports whether a report with this hash already went through
// extraction.
func (d *DB) IsProcessed(hash string) (bool, error) {
	row, err := d.GetDocumentByHash(hash)
	if err != nil || row == nil {
		return false, err
	}
	return row.Status == "processed" || row.Status == "fallback", nil
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

func (d *DB) InsertExtraction(runID string, documentID int, res internal.ExtractionResult) (int64, error) {
	confidenceJSON, _ := json.Marshal(res.Confidence)
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, _ := json.Marshal(warnings)

	result, err := d.conn.Exec(`
INSERT INTO extractions (runId, documentId, platform, platformName, currency, income, expenses, tax,
  confidenceJson, usedFallback, fallbackReason, warningsJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, runID, documentID, res.PlatformID, res.PlatformName, res.CurrencyCode,
		res.Figures.Income.String(), res.Figures.Expenses.String(), res.Figures.Tax.String(),
		string(confidenceJSON), res.UsedFallback, string(res.FallbackReason), string(warningsJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListExtractions returns the most recent extractions first.
func (d *DB) ListExtractions(limit int) ([]internal.ExtractionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT x.id, x.runId, x.documentId, doc.name, x.platform, x.platformName, x.currency,
       x.income, x.expenses, x.tax, x.confidenceJson, x.usedFallback, x.fallbackReason,
       x.warningsJson, x.createdAt
FROM extractions x
JOIN documents doc ON doc.id = x.documentId
ORDER BY x.id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExtractionRow
	for rows.Next() {
		var (
			row                    internal.ExtractionRow
			income, expenses, tax  string
			confidenceJSON, reason string
			warningsJSON           string
		)
		res := &row.Result
		if err := rows.Scan(
			&row.ID, &row.RunID, &row.DocumentID, &row.DocumentName,
			&res.PlatformID, &res.PlatformName, &res.CurrencyCode,
			&income, &expenses, &tax, &confidenceJSON, &res.UsedFallback, &reason,
			&warningsJSON, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		res.FallbackReason = internal.FallbackReason(reason)
		if res.Figures, err = parseFigures(income, expenses, tax); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(confidenceJSON), &res.Confidence)
		_ = json.Unmarshal([]byte(warningsJSON), &res.Warnings)
		out = append(out, row)
	}
	return out, rows.Err()
}

func parseFigures(income, expenses, tax string) (internal.FinancialFigures, error) {
	var f internal.FinancialFigures
	var err error
	if f.Income, err = decimal.NewFromString(income); err != nil {
		return f, err
	}
	if f.Expenses, err = decimal.NewFromString(expenses); err != nil {
		return f, err
	}
	if f.Tax, err = decimal.NewFromString(tax); err != nil {
		return f, err
	}
	return f, nil
}

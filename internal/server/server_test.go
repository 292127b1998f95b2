package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sellerbooks/internal/config"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/storage"
)

const ukReport = "date/time,type,product sales,product sales tax,selling fees\n" +
	"01/03/2024,Order,\"1,000.00\",200.00,-150.00\n"

func newTestServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var db *storage.DB
	if withDB {
		var err error
		db, err = storage.Open(filepath.Join(t.TempDir(), "app.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })
	}
	reg := platform.Default()
	proc := pipeline.NewProcessingService(pipeline.NewExtractor(reg, pipeline.DefaultSettings()), db, nil)
	cfg := config.Config{DefaultPlatform: "uk", MaxUploadMB: 1, CacheTTLSec: 60}
	return New(proc, reg, db, cfg)
}

func upload(t *testing.T, s *Server, name string, content []byte, platformID string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if platformID != "" {
		require.NoError(t, mw.WriteField("platform", platformID))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := get(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestListPlatforms(t *testing.T) {
	s := newTestServer(t, false)
	rec := get(s, http.MethodGet, "/api/platforms")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []PlatformInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, len(platform.Default().IDs()))

	ids := map[string]PlatformInfo{}
	for _, p := range out {
		ids[p.ID] = p
	}
	assert.Equal(t, "GBP", ids["uk"].Currency)
	assert.True(t, ids["de"].SkipTax)
}

func TestExtractFillsWorksheetAndCaches(t *testing.T) {
	s := newTestServer(t, true)

	rec := upload(t, s, "uk_march.csv", []byte(ukReport), "uk")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var res pipeline.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "uk", res.Outcome.Result.PlatformID)
	assert.Equal(t, "1000.00", res.Outcome.Result.Figures.Income.StringFixed(2))
	assert.Equal(t, "-150.00", res.Outcome.Result.Figures.Expenses.StringFixed(2))
	assert.NotEmpty(t, res.RunID)

	again := upload(t, s, "uk_march.csv", []byte(ukReport), "uk")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "hit", again.Header().Get("X-Cache"))

	page := get(s, http.MethodGet, "/api/worksheet")
	require.Equal(t, http.StatusOK, page.Code)
	doc, err := goquery.NewDocumentFromReader(page.Body)
	require.NoError(t, err)
	cell := doc.Find(`#sales tr[data-row-index="8"] td[data-column-index="10"]`)
	assert.Equal(t, "1000.00 GBP", cell.Text())

	hist := get(s, http.MethodGet, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, hist.Code)
	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "uk_march.csv", entries[0].Document)
}

func TestExtractErrors(t *testing.T) {
	s := newTestServer(t, false)

	rec := upload(t, s, "", nil, "uk")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, s, "notes.docx", []byte("hello"), "uk")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "UNSUPPORTED_FORMAT", e.Error)
	assert.Equal(t, http.StatusUnsupportedMediaType, e.Code)

	big := bytes.Repeat([]byte("a"), 2<<20)
	rec = upload(t, s, "big.csv", big, "uk")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHistoryWithoutRunLog(t *testing.T) {
	s := newTestServer(t, false)
	rec := get(s, http.MethodGet, "/api/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWorksheetExportAndClear(t *testing.T) {
	s := newTestServer(t, false)
	require.Equal(t, http.StatusOK, upload(t, s, "uk_march.csv", []byte(ukReport), "uk").Code)

	rec := get(s, http.MethodGet, "/api/worksheet.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sales", "L9", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1000", v)

	rec = get(s, http.MethodDelete, "/api/worksheet")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.proc.Worksheet().HasData())
}

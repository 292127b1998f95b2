package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"sellerbooks/internal/logger"
	"sellerbooks/internal/pipeline"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) listPlatforms(c *gin.Context) {
	out := make([]PlatformInfo, 0, len(s.registry.IDs()))
	for _, p := range s.registry.Profiles() {
		out = append(out, PlatformInfo{ID: p.ID, Name: p.Name, Currency: p.Currency, SkipTax: p.SkipTax})
	}
	c.JSON(http.StatusOK, out)
}

// extract handles POST /api/extract with a multipart "file" and an optional
// "platform" field.
func (s *Server) extract(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	if fh.Size > s.engine.MaxMultipartMemory {
		s.sendError(c, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "file too large", nil)
		return
	}

	platformID := strings.ToLower(strings.TrimSpace(c.PostForm("platform")))
	if platformID == "" {
		platformID = s.cfg.DefaultPlatform
	}
	if platformID == "" {
		platformID = pipeline.AutoPlatform
	}

	f, err := fh.Open()
	if err != nil {
		s.sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot read upload", err)
		return
	}
	defer f.Close()
	blob, err := io.ReadAll(f)
	if err != nil {
		s.sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot read upload", err)
		return
	}

	key := pipeline.ContentHash(blob) + ":" + platformID
	if s.results != nil {
		if cached, found := s.results.Get(key); found {
			res := cached.(pipeline.ProcessResult)
			if err := s.proc.ApplyResult(res.Outcome.Result); err != nil {
				s.sendError(c, http.StatusInternalServerError, "EXTRACTION_FAILED", "cannot update worksheet", err)
				return
			}
			c.Header("X-Cache", "hit")
			c.JSON(http.StatusOK, res)
			return
		}
	}

	res, err := s.proc.ProcessDocument(fh.Filename, blob, platformID)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnsupportedFormat) {
			s.sendError(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "unsupported report format", err)
			return
		}
		s.sendError(c, http.StatusInternalServerError, "EXTRACTION_FAILED", "extraction failed", err)
		return
	}

	if s.results != nil {
		s.results.Set(key, res, cache.DefaultExpiration)
	}
	c.Header("X-Cache", "miss")
	c.JSON(http.StatusOK, res)
}

func (s *Server) history(c *gin.Context) {
	if s.db == nil {
		s.sendError(c, http.StatusServiceUnavailable, "RUN_LOG_DISABLED", "run log is disabled", nil)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		s.sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
		return
	}

	rows, err := s.db.ListExtractions(limit)
	if err != nil {
		s.sendError(c, http.StatusInternalServerError, "HISTORY_FAILED", "cannot read run log", err)
		return
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, HistoryEntry{
			RunID:      r.RunID,
			DocumentID: r.DocumentID,
			Document:   r.DocumentName,
			CreatedAt:  r.CreatedAt,
			Result:     r.Result,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) worksheetHTML(c *gin.Context) {
	html, err := s.proc.Worksheet().RenderHTML()
	if err != nil {
		s.sendError(c, http.StatusInternalServerError, "RENDER_FAILED", "cannot render worksheet", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) worksheetXLSX(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.proc.Worksheet().WriteXLSX(&buf); err != nil {
		s.sendError(c, http.StatusInternalServerError, "EXPORT_FAILED", "cannot export worksheet", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="worksheet.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (s *Server) clearWorksheet(c *gin.Context) {
	s.proc.Worksheet().Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) sendError(c *gin.Context, statusCode int, code, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = message + ": " + err.Error()
		logger.L.WithError(err).WithField("path", c.Request.URL.Path).Warn(message)
	}

	c.JSON(statusCode, ErrorResponse{
		Error:   code,
		Message: errorMsg,
		Code:    statusCode,
	})
}

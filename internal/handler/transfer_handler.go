package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todohabit/internal/service/transfer"
)

// MaxImportBytes caps the import request body.
const MaxImportBytes = 10 << 20

type TransferHandler struct {
	now    func() time.Time
	logger *zap.Logger
}

func NewTransferHandler(now func() time.Time, logger *zap.Logger) *TransferHandler {
	if now == nil {
		now = time.Now
	}
	return &TransferHandler{now: now, logger: logger}
}

// Export serves the export document as a download.
func (h *TransferHandler) Export(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	doc, err := s.Export()
	if err != nil {
		respondError(c, h.logger, "Export", err)
		return
	}
	data, err := transfer.Marshal(doc)
	if err != nil {
		respondError(c, h.logger, "Export", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+transfer.FileName(h.now())+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *TransferHandler) Import(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportBytes)
	data, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("Import: unreadable body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}
	if err := s.Import(c.Request.Context(), data); err != nil {
		respondError(c, h.logger, "Import", err)
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondError(c, h.logger, "Import", err)
		return
	}
	h.logger.Info("Import: success",
		zap.String("user_id", c.GetString(ContextUserID)),
		zap.Int("todos", len(snap.Todos)),
		zap.Int("habits", len(snap.Habits)),
	)
	c.JSON(http.StatusOK, withBanner(s, gin.H{
		"todos":  len(snap.Todos),
		"habits": len(snap.Habits),
	}))
}

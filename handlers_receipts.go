package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"finapi/pkg/apperr"
	"finapi/pkg/receipt"
)

type attachRequest struct {
	TransactionID uint `json:"transaction_id" binding:"required"`
}

func (s *server) uploadReceiptHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, apperr.Field("file", "file is required"))
		return
	}
	if fh.Size > receipt.MaxUploadSize {
		s.fail(c, apperr.Field("file", "file too large (max 5MB)"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	rc, err := s.receipts.Save(c.Request.Context(), caller(c).ID, fh.Filename, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Receipt uploaded successfully"
	if rc.Failed {
		msg = "Receipt uploaded, no amount detected"
	}
	respond(c, http.StatusCreated, msg, gin.H{"receipt": rc})
}

func (s *server) listReceiptsHandler(c *gin.Context) {
	rs, err := s.receipts.List(c.Request.Context(), caller(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"receipts": rs})
}

func (s *server) getReceiptHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rc, err := s.receipts.Get(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"receipt": rc})
}

func (s *server) attachReceiptHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	rc, err := s.receipts.Attach(c.Request.Context(), caller(c).ID, id, req.TransactionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Receipt attached", gin.H{"receipt": rc})
}

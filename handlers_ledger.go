package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/ledger"
)

type accountRequest struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Balance     decimal.Decimal `json:"balance"`
	Color       *string         `json:"color"`
	Description *string         `json:"description"`
}

type accountPatchRequest struct {
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

type transactionRequest struct {
	AccountID         uint            `json:"account_id"`
	CategoryID        uint            `json:"category_id"`
	TransferAccountID *uint           `json:"transfer_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Type              string          `json:"type"`
	Date              *string         `json:"date"`
	Description       *string         `json:"description"`
}

type transactionPatchRequest struct {
	AccountID         *uint            `json:"account_id"`
	CategoryID        *uint            `json:"category_id"`
	TransferAccountID *uint            `json:"transfer_account_id"`
	Amount            *decimal.Decimal `json:"amount"`
	Type              *string          `json:"type"`
	Date              *string          `json:"date"`
	Description       *string          `json:"description"`
}

type transactionQuery struct {
	Type      string `form:"type" binding:"omitempty,oneof=income expense transfer"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

func (s *server) createAccountHandler(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	a, err := s.ledger.CreateAccount(c.Request.Context(), caller(c).ID, ledger.AccountInput{
		Name:        req.Name,
		Type:        models.AccountType(req.Type),
		Balance:     req.Balance,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Account created successfully", gin.H{"account": a})
}

func (s *server) listAccountsHandler(c *gin.Context) {
	list, err := s.ledger.ListAccounts(c.Request.Context(), caller(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, list)
}

func (s *server) accountSummaryHandler(c *gin.Context) {
	sum, err := s.ledger.Summary(c.Request.Context(), caller(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, sum)
}

func (s *server) getAccountHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.ledger.GetAccount(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"account": a})
}

func (s *server) updateAccountHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req accountPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	p := ledger.AccountPatch{Name: req.Name, Color: req.Color, Description: req.Description}
	if req.Type != nil {
		t := models.AccountType(*req.Type)
		p.Type = &t
	}
	a, err := s.ledger.UpdateAccount(c.Request.Context(), caller(c).ID, id, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Account updated successfully", gin.H{"account": a})
}

func (s *server) deleteAccountHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.ledger.DeleteAccount(c.Request.Context(), caller(c).ID, id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Account deleted successfully", nil)
}

func (s *server) reconcileAccountHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.ledger.Reconcile(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Account balance is consistent"
	if res.Repaired {
		msg = "Account balance repaired"
	}
	respond(c, http.StatusOK, msg, res)
}

func (s *server) createTransactionHandler(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.ledger.CreateTransaction(c.Request.Context(), caller(c).ID, ledger.TransactionInput{
		AccountID:         req.AccountID,
		CategoryID:        req.CategoryID,
		TransferAccountID: req.TransferAccountID,
		Amount:            req.Amount,
		Type:              models.TransactionType(req.Type),
		Date:              date,
		Description:       req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Transaction created successfully", gin.H{"transaction": t})
}

func (s *server) listTransactionsHandler(c *gin.Context) {
	var q transactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, bindError(err))
		return
	}
	from, to, err := dateRange(q.StartDate, q.EndDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	p := ledger.ListParams{Type: models.TransactionType(q.Type), From: from, To: to}
	if p.AccountID, err = queryUint(c, "account_id"); err != nil {
		s.fail(c, err)
		return
	}
	if p.CategoryID, err = queryUint(c, "category_id"); err != nil {
		s.fail(c, err)
		return
	}
	if p.Page, err = queryInt(c, "page", 1); err != nil {
		s.fail(c, err)
		return
	}
	if p.Limit, err = queryInt(c, "limit", ledger.DefaultPageSize); err != nil {
		s.fail(c, err)
		return
	}
	page, err := s.ledger.ListTransactions(c.Request.Context(), caller(c).ID, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, page)
}

func (s *server) getTransactionHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.ledger.GetTransaction(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"transaction": t})
}

func (s *server) updateTransactionHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req transactionPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		s.fail(c, err)
		return
	}
	p := ledger.TransactionPatch{
		AccountID:         req.AccountID,
		CategoryID:        req.CategoryID,
		TransferAccountID: req.TransferAccountID,
		Amount:            req.Amount,
		Date:              date,
		Description:       req.Description,
	}
	if req.Type != nil {
		typ := models.TransactionType(*req.Type)
		p.Type = &typ
	}
	t, err := s.ledger.UpdateTransaction(c.Request.Context(), caller(c).ID, id, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Transaction updated successfully", gin.H{"transaction": t})
}

func (s *server) deleteTransactionHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.ledger.DeleteTransaction(c.Request.Context(), caller(c).ID, id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Transaction deleted successfully", nil)
}

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/goals"
)

type goalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	TargetDate   string          `json:"target_date" binding:"required"`
	Description  *string         `json:"description"`
}

type goalPatchRequest struct {
	Name         *string          `json:"name"`
	TargetAmount *decimal.Decimal `json:"target_amount"`
	TargetDate   *string          `json:"target_date"`
	Description  *string          `json:"description"`
	Status       *string          `json:"status" binding:"omitempty,oneof=active completed paused cancelled"`
}

type contributionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *server) createGoalHandler(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	date, _, err := parseDate("target_date", req.TargetDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	g, err := s.goals.Create(c.Request.Context(), caller(c).ID, goals.Input{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		TargetDate:   date,
		Description:  req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Goal created successfully", gin.H{"goal": g})
}

func (s *server) listGoalsHandler(c *gin.Context) {
	list, err := s.goals.List(c.Request.Context(), caller(c).ID, models.GoalStatus(c.Query("status")))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, list)
}

func (s *server) upcomingGoalsHandler(c *gin.Context) {
	days, err := queryInt(c, "days", goals.DefaultUpcomingDays)
	if err != nil {
		s.fail(c, err)
		return
	}
	views, err := s.goals.Upcoming(c.Request.Context(), caller(c).ID, days)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"goals": views, "days": days})
}

func (s *server) getGoalHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	g, err := s.goals.Get(c.Request.Context(), caller(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"goal": g})
}

func (s *server) updateGoalHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req goalPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	date, err := optionalDate("target_date", req.TargetDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	p := goals.Patch{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		TargetDate:   date,
		Description:  req.Description,
	}
	if req.Status != nil {
		st := models.GoalStatus(*req.Status)
		p.Status = &st
	}
	g, err := s.goals.Update(c.Request.Context(), caller(c).ID, id, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Goal updated successfully", gin.H{"goal": g})
}

func (s *server) deleteGoalHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.goals.Delete(c.Request.Context(), caller(c).ID, id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Goal deleted successfully", nil)
}

func (s *server) contributeGoalHandler(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req contributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	res, err := s.goals.Contribute(c.Request.Context(), caller(c).ID, id, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Amount added to goal successfully"
	if res.Completed {
		msg = "Congratulations! Goal completed"
	}
	respond(c, http.StatusOK, msg, res)
}

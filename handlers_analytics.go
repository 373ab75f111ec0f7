package main

import (
	"github.com/gin-gonic/gin"
)

func (s *server) monthlyHandler(c *gin.Context) {
	year, err := queryInt(c, "year", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	month, err := queryInt(c, "month", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	m, err := s.analytics.Monthly(c.Request.Context(), caller(c).ID, year, month)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, m)
}

func (s *server) projectionsHandler(c *gin.Context) {
	months, err := queryInt(c, "months", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := s.analytics.Projections(c.Request.Context(), caller(c).ID, months)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, f)
}

func (s *server) dashboardHandler(c *gin.Context) {
	d, err := s.analytics.Dashboard(c.Request.Context(), caller(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, d)
}

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
	"github.com/suduli/AI-ASIL-Analyser/internal/export"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"components": s.catalog.Len(),
		"sessions":   s.sessions.Len(),
	})
}

func (s *Server) matrix(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cells": asil.Cells()})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Stats())
}

func (s *Server) listComponents(c *gin.Context) {
	records := s.catalog.Search(c.Query("q"), c.Query("category"))
	if raw := c.Query("asil"); raw != "" {
		level, err := schema.ParseASIL(raw)
		if err != nil {
			s.writeError(c, &core.ValidationError{Field: "asil", Message: err.Error(), Err: err})
			return
		}
		filtered := records[:0]
		for _, rec := range records {
			if asil.Of(rec.Rating) == level {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []schema.ComponentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"components": records, "count": len(records)})
}

func (s *Server) getComponent(c *gin.Context) {
	rec, err := s.catalog.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component": rec, "asil": asil.Of(rec.Rating)})
}

func (s *Server) exportCatalog(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="asil-catalog.csv"`)
	if err := export.WriteCatalogCSV(c.Writer, s.catalog.List()); err != nil {
		s.logger.Error("write catalog csv", "error", err)
	}
}

// bindComponent decodes a component body and rejects invalid records
// before they reach the catalog.
func bindComponent(c *gin.Context) (schema.ComponentRecord, error) {
	var rec schema.ComponentRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		return rec, &core.ValidationError{Field: "body", Message: err.Error(), Err: err}
	}
	check := rec.Clone()
	if strings.TrimSpace(check.Category) == "" {
		check.Category = schema.DefaultCategory
	}
	if err := schema.ValidateComponent(&check); err != nil {
		return rec, &core.ValidationError{Field: "component", Message: err.Error(), Err: err}
	}
	return rec, nil
}

func (s *Server) createComponent(c *gin.Context) {
	rec, err := bindComponent(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	saved, err := s.catalog.Add(c.Request.Context(), rec)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"component": saved})
}

func (s *Server) updateComponent(c *gin.Context) {
	rec, err := bindComponent(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	saved, err := s.catalog.Update(c.Request.Context(), c.Param("id"), rec)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component": saved})
}

func (s *Server) deleteComponent(c *gin.Context) {
	removed, err := s.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed.ID})
}

type adoptRequest struct {
	AnalysisID string `json:"analysis_id" binding:"required"`
}

func (s *Server) adoptRating(c *gin.Context) {
	var req adoptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &core.ValidationError{Field: "analysis_id", Message: "analysis_id is required", Err: err})
		return
	}
	a, ok := s.findAnalysis(c, req.AnalysisID)
	if !ok {
		return
	}
	if id := a.Report().ComponentID; id != c.Param("id") {
		s.writeError(c, &core.ValidationError{
			Field:   "analysis_id",
			Message: fmt.Sprintf("analysis %s is for component %q", req.AnalysisID, id),
		})
		return
	}
	rec, err := s.analyzer.Adopt(c.Request.Context(), a)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component": rec, "analysis": a.Report()})
}

// session returns the caller's analysis session, issuing a cookie for a
// new one.
func (s *Server) session(c *gin.Context) (*core.Session, error) {
	cookie := sessions.Default(c)
	id, _ := cookie.Get(sessionKey).(string)
	sess, err := s.sessions.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if sess.ID() != id {
		cookie.Set(sessionKey, sess.ID())
		if err := cookie.Save(); err != nil {
			return nil, fmt.Errorf("save session cookie: %w", err)
		}
	}
	return sess, nil
}

// analyze starts an analysis and returns the report at once, with the
// candidate still pending unless wait=true was given.
func (s *Server) analyze(c *gin.Context) {
	var req core.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &core.ValidationError{Field: "body", Message: err.Error(), Err: err})
		return
	}
	sess, err := s.session(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	a, err := sess.Analyze(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	report := a.Report()
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		report, err = a.Wait(c.Request.Context())
		if err != nil {
			report = a.Report()
		}
	}
	c.JSON(reportStatus(report), report)
}

func reportStatus(r *schema.AnalysisReport) int {
	if r.Done() {
		return http.StatusOK
	}
	return http.StatusAccepted
}

// findAnalysis looks id up in the caller's own session. Analyses of other
// sessions are reported as not found.
func (s *Server) findAnalysis(c *gin.Context, id string) (*core.Analysis, bool) {
	sid, _ := sessions.Default(c).Get(sessionKey).(string)
	if sess, ok := s.sessions.Get(sid); ok && sid != "" {
		if a, ok := sess.Find(id); ok {
			return a, true
		}
	}
	abortWithError(c, http.StatusNotFound, fmt.Sprintf("analysis %s not found", id))
	return nil, false
}

func (s *Server) getAnalysis(c *gin.Context) {
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}
	report := a.Report()
	c.JSON(reportStatus(report), report)
}

func (s *Server) setOverrides(c *gin.Context) {
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}
	var ov schema.Overrides
	if err := c.ShouldBindJSON(&ov); err != nil {
		s.writeError(c, &core.ValidationError{Field: "overrides", Message: err.Error(), Err: err})
		return
	}
	report, err := a.SetOverrides(ov)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(reportStatus(report), report)
}

func (s *Server) saveAnalysis(c *gin.Context) {
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}
	rec, created, err := s.analyzer.Save(c.Request.Context(), a)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"component": rec, "created": created})
}

func (s *Server) exportAnalysis(c *gin.Context) {
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatJSON)))
	if err != nil {
		s.writeError(c, &core.ValidationError{Field: "format", Message: err.Error(), Err: err})
		return
	}
	report := a.Report()
	contentType := "application/json"
	if format == export.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(report, format)))
	if err := export.Write(c.Writer, format, report); err != nil {
		s.logger.Error("write analysis export", "analysis_id", report.ID, "error", err)
	}
}

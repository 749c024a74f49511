package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"leaguestats/models"
	"leaguestats/pkg/formula"
	"leaguestats/pkg/ingest"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/rating"
	"leaguestats/pkg/reconcile"
	"leaguestats/pkg/region"
	"leaguestats/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func setupRoutes(r *gin.Engine, a *app) {
	r.Use(requestID(), requestLogger(a.log.WithField("component", "http")))
	r.GET("/health", a.healthHandler)

	limiter := newIPLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware(a.cfg.JWTSecret))
	authGroup.POST("/ingest", rateLimit(limiter, a.cfg.RateLimitWindow), a.ingestHandler)
	authGroup.GET("/catalog", a.catalogHandler)
	authGroup.POST("/formulas/validate", a.validateFormulaHandler)
	authGroup.GET("/formulas", a.listFormulasHandler)
	authGroup.GET("/formulas/:id", a.getFormulaHandler)
	authGroup.POST("/formulas/:id/rank", a.rankHandler)
	authGroup.POST("/team-of-the-week", a.teamOfTheWeekHandler)
	authGroup.GET("/role-mappings", a.listRoleMappingsHandler)

	admin := authGroup.Group("")
	admin.Use(requireRole(roleAdmin))
	admin.POST("/formulas", a.saveFormulaHandler)
	admin.DELETE("/formulas/:id", a.deleteFormulaHandler)
	admin.PUT("/role-mappings", a.replaceRoleMappingsHandler)
	admin.GET("/uploads", a.listUploadsHandler)
}

// newHTTPHandler builds the full handler chain used by serve and the tests.
func newHTTPHandler(a *app) http.Handler {
	if a.cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = a.cfg.MaxUploadSize
	setupRoutes(r, a)
	return withCORS(r, a.cfg.CORSOrigins)
}

func (a *app) healthHandler(c *gin.Context) {
	status := http.StatusOK
	dbState := "ok"
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbState = "unreachable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"database":        dbState,
		"ocr":             a.ocrState(),
		"catalog_version": a.catalogs.Load().Version(),
	})
}

// ingestHandler accepts a multipart screenshot plus its regions and runs the
// pipeline. A best-effort record is returned whenever anything was read.
func (a *app) ingestHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if a.cfg.MaxUploadSize > 0 && file.Size > a.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file too large (max %d bytes)", a.cfg.MaxUploadSize)})
		return
	}
	var regions []region.Region
	if err := json.Unmarshal([]byte(c.PostForm("regions")), &regions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "regions must be a JSON array of {x,y,width,height}"})
		return
	}
	key, err := keyFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	reqID := c.GetString(requestIDKey)
	resp, runErr := a.pipeline.Run(c.Request.Context(), ingest.Request{
		RequestID: reqID,
		Image:     data,
		Regions:   regions,
		Key:       key,
		Position:  strings.TrimSpace(c.PostForm("position")),
	})

	up := models.Upload{
		RequestID:         reqID,
		FileName:          filepath.Base(file.Filename),
		ContentType:       file.Header.Get("Content-Type"),
		Status:            string(resp.Status),
		OverallConfidence: resp.OverallConfidence,
	}
	if key != nil {
		up.RecordKey = key.String()
	}
	if runErr != nil {
		up.Failed = true
		up.FailedReason = truncate(runErr.Error(), 255)
	} else if a.cfg.UploadDir != "" {
		up.StorePath = a.keepScreenshot(file.Filename, data)
	}
	if err := a.uploads.Create(c.Request.Context(), &up); err != nil {
		a.log.WithError(err).WithField("request_id", reqID).Warn("upload audit row not saved")
	}

	if runErr != nil {
		c.JSON(ingestStatus(runErr), gin.H{
			"error":         runErr.Error(),
			"request_id":    reqID,
			"region_errors": resp.RegionErrors,
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, region.ErrCorruptImage), errors.Is(err, region.ErrNoRegions),
		errors.Is(err, region.ErrNilImage), errors.Is(err, reconcile.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrNoUsableRegion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ocr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ocr.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, reconcile.ErrContended):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// keyFromForm reads player_id with either match_id or season_id+team_id.
// No player_id means the screenshot is only extracted.
func keyFromForm(c *gin.Context) (*reconcile.Key, error) {
	player := strings.TrimSpace(c.PostForm("player_id"))
	match := strings.TrimSpace(c.PostForm("match_id"))
	season := strings.TrimSpace(c.PostForm("season_id"))
	team := strings.TrimSpace(c.PostForm("team_id"))
	if player == "" {
		if match != "" || season != "" {
			return nil, fmt.Errorf("player_id is required with match_id or season_id")
		}
		return nil, nil
	}
	var key reconcile.Key
	switch {
	case match != "" && season != "":
		return nil, fmt.Errorf("give match_id or season_id, not both")
	case match != "":
		key = reconcile.MatchKey(player, match)
	case season != "":
		key = reconcile.SeasonKey(player, season, team)
	default:
		return nil, fmt.Errorf("match_id or season_id is required with player_id")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &key, nil
}

var storedExtPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// keepScreenshot stores data under a server-generated name inside UploadDir.
// Only the client's extension survives, and only when it is plain.
func (a *app) keepScreenshot(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if !storedExtPattern.MatchString(ext) {
		ext = ".img"
	}
	path := filepath.Join(a.cfg.UploadDir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.log.WithError(err).WithField("path", path).Warn("failed to keep screenshot")
		return ""
	}
	return path
}

func (a *app) catalogHandler(c *gin.Context) {
	cat := a.catalogs.Load()
	c.JSON(http.StatusOK, gin.H{"version": cat.Version(), "fields": cat.Fields()})
}

func (a *app) validateFormulaHandler(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	compiled, err := formula.Compile(req.Source, a.catalogs.Load())
	if err != nil {
		writeCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "fields": compiled.Fields})
}

func writeCompileError(c *gin.Context, err error) {
	var fe *formula.Error
	if errors.As(err, &fe) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "error": fe})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (a *app) listFormulasHandler(c *gin.Context) {
	rows, err := a.formulas.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]formula.Formula, len(rows))
	for i, f := range rows {
		out[i] = toFormula(f)
	}
	c.JSON(http.StatusOK, out)
}

func (a *app) getFormulaHandler(c *gin.Context) {
	f, ok := a.formulaFromParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toFormula(*f))
}

// saveFormulaHandler compiles before writing so stored rows always compile
// against the catalog current at write time.
func (a *app) saveFormulaHandler(c *gin.Context) {
	var req formula.Formula
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := formula.Compile(req.Source, a.catalogs.Load()); err != nil {
		writeCompileError(c, err)
		return
	}
	row := models.Formula{ID: req.ID, Name: req.Name, Source: req.Source, Position: strings.TrimSpace(req.Position), Color: req.Color}
	if err := a.formulas.Save(c.Request.Context(), &row); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "formula not found"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, toFormula(row))
}

func (a *app) deleteFormulaHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := a.formulas.Delete(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "formula not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type scopeRequest struct {
	MatchIDs  []string `json:"match_ids"`
	SeasonID  string   `json:"season_id"`
	TeamID    string   `json:"team_id"`
	Formation string   `json:"formation"`
}

// candidates loads the stored rows a rating request is scoped to.
func (a *app) candidates(ctx context.Context, s scopeRequest) ([]rating.Candidate, error) {
	var rows []reconcile.Snapshot
	var err error
	switch {
	case len(s.MatchIDs) > 0 && s.SeasonID != "":
		return nil, fmt.Errorf("give match_ids or season_id, not both")
	case len(s.MatchIDs) > 0:
		rows, err = a.stats.ListByMatches(ctx, s.MatchIDs)
	case s.SeasonID != "":
		rows, err = a.stats.ListBySeason(ctx, s.SeasonID, s.TeamID)
	default:
		return nil, fmt.Errorf("match_ids or season_id is required")
	}
	if err != nil {
		return nil, err
	}
	return rating.FromSnapshots(rows), nil
}

func (a *app) rankHandler(c *gin.Context) {
	f, ok := a.formulaFromParam(c)
	if !ok {
		return
	}
	var req struct {
		scopeRequest
		TopN int `json:"top_n"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	compiled, err := a.cache.Get(f.Source, a.catalogs.Load())
	if err != nil {
		// the catalog changed under a stored formula
		writeCompileError(c, err)
		return
	}
	cands, err := a.candidates(c.Request.Context(), req.scopeRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ranked, summary, err := rating.Rank(c.Request.Context(), a.engine, compiled, f.Position, cands, rating.Options{
		TopN:      req.TopN,
		Formation: req.Formation,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formula": toFormula(*f), "ranked": ranked, "summary": summary})
}

func (a *app) teamOfTheWeekHandler(c *gin.Context) {
	var req struct {
		scopeRequest
		Slots []struct {
			Label     string `json:"label"`
			FormulaID uint   `json:"formula_id"`
		} `json:"slots"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Slots) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slots are required"})
		return
	}
	ctx := c.Request.Context()
	cat := a.catalogs.Load()
	slots := make([]rating.Slot, 0, len(req.Slots))
	for _, s := range req.Slots {
		f, err := a.formulas.Get(ctx, s.FormulaID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("formula %d not found", s.FormulaID)})
			return
		}
		compiled, err := a.cache.Get(f.Source, cat)
		if err != nil {
			writeCompileError(c, err)
			return
		}
		label := s.Label
		if label == "" {
			label = f.Name
		}
		slots = append(slots, rating.Slot{Label: label, Formula: compiled, FormulaPosition: f.Position})
	}
	cands, err := a.candidates(ctx, req.scopeRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	picks, err := rating.TeamOfTheWeek(ctx, a.engine, slots, cands, req.Formation)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formation": req.Formation, "picks": picks})
}

func (a *app) listRoleMappingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.engine.Roles().Mappings())
}

// replaceRoleMappingsHandler validates the whole table before touching the
// database, then swaps the in-memory map.
func (a *app) replaceRoleMappingsHandler(c *gin.Context) {
	var req []formula.Mapping
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rm, err := formula.NewRoleMap(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.roleStore.Replace(c.Request.Context(), fromMappings(rm.Mappings())); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	a.engine.SetRoles(rm)
	c.JSON(http.StatusOK, rm.Mappings())
}

func (a *app) listUploadsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := a.uploads.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (a *app) formulaFromParam(c *gin.Context) (*models.Formula, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	f, err := a.formulas.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "formula not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	return f, true
}

func toFormula(f models.Formula) formula.Formula {
	return formula.Formula{ID: f.ID, Name: f.Name, Source: f.Source, Position: f.Position, Color: f.Color}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

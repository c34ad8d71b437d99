// Package server exposes the master-data store over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/refbase-dev/refbase-admin/internal/store"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
	"github.com/refbase-dev/refbase-admin/pkg/sdk"
)

type Handler struct {
	Store   sdk.MasterStore
	Catalog []schema.TableDef
	Token   string
	Log     *zap.Logger
}

// NewRouter wires the API routes onto a gin engine. An empty token disables
// authentication (embedded and test use).
func NewRouter(h *Handler) *gin.Engine {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Locale-Id")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := r.Group("/api")
	api.GET("/ping", h.Ping)

	authed := api.Group("", h.requireToken)
	{
		authed.GET("/tables", h.Tables)
		authed.GET("/tables/:table/records", h.List)
		authed.POST("/tables/:table/records", h.Create)
		authed.GET("/tables/:table/records/:id", h.Get)
		authed.PUT("/tables/:table/records/:id", h.Update)
		authed.DELETE("/tables/:table/records/:id", h.Delete)
		authed.PUT("/tables/:table/records/:id/translations/:locale", h.TranslatePut)
		authed.POST("/tables/:table/records/:id/translations", h.TranslatePost)
		authed.GET("/tables/:table/records/:id/audit", h.Audit)
		authed.GET("/lookups/:table", h.Lookup)
	}

	return r
}

func (h *Handler) requireToken(c *gin.Context) {
	if h.Token == "" {
		c.Next()
		return
	}
	auth := c.GetHeader("Authorization")
	if strings.TrimPrefix(auth, "Bearer ") != h.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Next()
}

// rctx rebuilds the request context from the wire headers.
func rctx(c *gin.Context) schema.RequestContext {
	out := schema.RequestContext{
		AuthToken: strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "),
	}
	if v := c.GetHeader("X-Locale-Id"); v != "" {
		out.LocaleID, _ = strconv.Atoi(v)
	}
	return out
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Tables lists the served table definitions so a client can render any of
// them without baked-in knowledge of the catalog.
func (h *Handler) Tables(c *gin.Context) {
	defs := h.Catalog
	if defs == nil {
		defs = []schema.TableDef{}
	}
	c.JSON(http.StatusOK, defs)
}

func (h *Handler) List(c *gin.Context) {
	params := schema.ListParams{ActiveOnly: c.Query("active") == "1"}
	records, err := h.Store.List(rctx(c), c.Param("table"), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []schema.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	rec, err := h.Store.Get(rctx(c), c.Param("table"), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Create(c *gin.Context) {
	var input struct {
		ParentID int64          `json:"parent_id"`
		Fields   map[string]any `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeValidation})
		return
	}
	rec, err := h.Store.Create(rctx(c), c.Param("table"), input.ParentID, input.Fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var diff schema.DiffPayload
	if err := c.ShouldBindJSON(&diff); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeValidation})
		return
	}
	rec, err := h.Store.Update(rctx(c), c.Param("table"), id, diff)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete answers 200 on success and 409 with a machine-readable code when
// the store rejects the soft delete. The rejection reason travels in the
// error field.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	outcome, err := h.Store.Delete(rctx(c), c.Param("table"), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	switch outcome.Status {
	case schema.Deleted:
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	case schema.RejectedReferentialIntegrity:
		c.JSON(http.StatusConflict, gin.H{"error": outcome.Reason, "code": sdk.CodeReferentialIntegrity})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": outcome.Reason})
	}
}

func (h *Handler) Lookup(c *gin.Context) {
	items, err := h.Store.ResolveLookup(rctx(c), c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = schema.LookupTable{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) TranslatePut(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	localeID, err := strconv.Atoi(c.Param("locale"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid locale id", "code": sdk.CodeValidation})
		return
	}
	var input struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeValidation})
		return
	}
	if err := h.Store.Translate(rctx(c), c.Param("table"), id, localeID, input.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) TranslatePost(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var input struct {
		LocaleID int    `json:"locale_id" binding:"required"`
		Text     string `json:"text"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeValidation})
		return
	}
	if err := h.Store.Translate(rctx(c), c.Param("table"), id, input.LocaleID, input.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Audit(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	entries, err := h.Store.Audit(rctx(c), c.Param("table"), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []schema.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// fail maps store errors onto wire status and code.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sdk.ErrUnknownTable), errors.Is(err, sdk.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": sdk.CodeNotFound})
	case errors.Is(err, sdk.ErrDuplicateCode):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": sdk.CodeDuplicateCode})
	case errors.Is(err, store.ErrCodeRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": sdk.CodeValidation})
	default:
		h.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id", "code": sdk.CodeValidation})
		return 0, false
	}
	return id, true
}

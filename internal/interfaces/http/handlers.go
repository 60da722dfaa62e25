package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/domain/flow"
	"github.com/collectivehq/funding-flow/internal/models"
	"github.com/collectivehq/funding-flow/internal/payment"
	"github.com/collectivehq/funding-flow/internal/service"
)

// maxUploadBytes caps a single uploaded document
const maxUploadBytes = 20 << 20

// Handlers holds the HTTP handlers and their service dependencies
type Handlers struct {
	contributions *service.ContributionService
	expenses      *service.ExpenseService
	reports       Reports
	logger        *zap.Logger
}

// Reports produces admin exports
type Reports interface {
	ExportOrders(orders []*models.Order) (string, error)
	ExportDrafts(drafts []*models.ExpenseDraft) (string, error)
}

// NewHandlers creates the handler set
func NewHandlers(contributions *service.ContributionService, expenses *service.ExpenseService, reports Reports, logger *zap.Logger) *Handlers {
	return &Handlers{
		contributions: contributions,
		expenses:      expenses,
		reports:       reports,
		logger:        logger,
	}
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateFlow starts a new contribution flow
func (h *Handlers) CreateFlow(c *gin.Context) {
	id, snap := h.contributions.CreateFlow()
	c.JSON(http.StatusCreated, gin.H{"flow_id": id, "flow": snap})
}

// GetFlow returns the flow's current snapshot
func (h *Handlers) GetFlow(c *gin.Context) {
	snap, err := h.contributions.Snapshot(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// SetProfile updates the profile step data
func (h *Handlers) SetProfile(c *gin.Context) {
	var req flow.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.contributions.SetProfile(c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// SetDetails updates the details step data
func (h *Handlers) SetDetails(c *gin.Context) {
	var req flow.Details
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.contributions.SetDetails(c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// SetPayment updates the payment step data
func (h *Handlers) SetPayment(c *gin.Context) {
	var req flow.Payment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.contributions.SetPayment(c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// SetSummary updates the summary step data
func (h *Handlers) SetSummary(c *gin.Context) {
	var req flow.Summary
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.contributions.SetSummary(c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// GoToStep navigates the flow to a visited step
func (h *Handlers) GoToStep(c *gin.Context) {
	var req struct {
		Step int `json:"step"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.contributions.GoToStep(c.Param("id"), req.Step)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// Advance validates the current step and moves forward
func (h *Handlers) Advance(c *gin.Context) {
	snap, err := h.contributions.Advance(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": snap})
}

// Submit charges and completes the flow
func (h *Handlers) Submit(c *gin.Context) {
	order, err := h.contributions.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CreateDraft opens a new expense draft
func (h *Handlers) CreateDraft(c *gin.Context) {
	var req struct {
		Type     expense.Type `json:"type"`
		Currency string       `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	draft, err := h.expenses.CreateDraft(req.Type, req.Currency)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"draft": draft})
}

// ListDrafts returns all expense drafts
func (h *Handlers) ListDrafts(c *gin.Context) {
	drafts, err := h.expenses.ListDrafts()
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

// GetDraft returns one expense draft
func (h *Handlers) GetDraft(c *gin.Context) {
	draft, err := h.expenses.GetDraft(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// UpdateForm replaces the draft's form with user edits
func (h *Handlers) UpdateForm(c *gin.Context) {
	var req expense.FormValues
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	draft, err := h.expenses.UpdateForm(c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// AttachUploads receives multipart documents and queues them for parsing.
// The optional replace_index form field names the item the first parsed
// result should replace.
func (h *Handlers) AttachUploads(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	replaceIndex := expense.NoReplace
	if v := c.PostForm("replace_index"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replace_index"})
			return
		}
		replaceIndex = idx
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	uploads := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large: " + fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
			return
		}
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Content: content})
	}

	draft, err := h.expenses.AttachUploads(c.Param("id"), uploads, replaceIndex)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"draft": draft})
}

// ExportOrders writes the orders workbook
func (h *Handlers) ExportOrders(c *gin.Context) {
	orders, err := h.contributions.Orders()
	if err != nil {
		h.renderError(c, err)
		return
	}
	path, err := h.reports.ExportOrders(orders)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// ExportDrafts writes the expense drafts workbook
func (h *Handlers) ExportDrafts(c *gin.Context) {
	drafts, err := h.expenses.ListDrafts()
	if err != nil {
		h.renderError(c, err)
		return
	}
	path, err := h.reports.ExportDrafts(drafts)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// renderError maps domain errors onto HTTP status codes
func (h *Handlers) renderError(c *gin.Context, err error) {
	var verr *flow.ValidationError
	var authErr *payment.AuthRequiredError

	switch {
	case errors.Is(err, service.ErrFlowNotFound), errors.Is(err, service.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"step":   verr.Step,
			"fields": verr.Fields,
		})

	case errors.Is(err, flow.ErrStepLocked),
		errors.Is(err, flow.ErrFlowSubmitted),
		errors.Is(err, flow.ErrSubmitInFlight),
		errors.Is(err, flow.ErrStepIncomplete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.As(err, &authErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":        "payment requires authentication",
			"redirect_url": authErr.RedirectURL,
		})

	case errors.Is(err, payment.ErrDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, payment.ErrNetwork):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		h.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

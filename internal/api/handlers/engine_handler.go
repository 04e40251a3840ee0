package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/service"
)

type EngineHandler struct {
	service *service.EngineService
}

func NewEngineHandler(service *service.EngineService) *EngineHandler {
	return &EngineHandler{service: service}
}

func (h *EngineHandler) GetPositions(c *gin.Context) {
	filter := service.PositionFilter{
		LocationID: strings.TrimSpace(c.Query("location_id")),
		ItemID:     strings.TrimSpace(c.Query("item_id")),
		Status:     domain.StatusCode(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
	}
	positions, err := h.service.Positions(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": positions, "total": len(positions)})
}

func (h *EngineHandler) GetSpikes(c *gin.Context) {
	signals := h.service.ActiveSpikes()
	if signals == nil {
		signals = []domain.SpikeSignal{}
	}
	c.JSON(http.StatusOK, gin.H{"data": signals})
}

// DetectSpikes runs a pass outside the scheduler's cadence.
func (h *EngineHandler) DetectSpikes(c *gin.Context) {
	res, err := h.service.DetectSpikes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *EngineHandler) DismissSpike(c *gin.Context) {
	sig, err := h.service.DismissSpike(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (h *EngineHandler) GetSpikeOptions(c *gin.Context) {
	qty, err := floatQuery(c, "quantity", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	sig, options, err := h.service.EmergencyOptions(c.Request.Context(), c.Param("id"), qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": sig, "options": options})
}

func (h *EngineHandler) AcceptSpikeOption(c *gin.Context) {
	var choice service.OptionChoice
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&choice); err != nil {
			badRequest(c, err)
			return
		}
	}
	acc, err := h.service.AcceptEmergencyOption(c.Request.Context(), c.Param("id"), choice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

type landedCostRequest struct {
	ItemID   string  `json:"item_id" binding:"required"`
	Quantity float64 `json:"quantity"`
}

func (h *EngineHandler) LandedCost(c *gin.Context) {
	var req landedCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quotes, err := h.service.LandedCost(c.Request.Context(), req.ItemID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes})
}

func (h *EngineHandler) ChooseVendor(c *gin.Context) {
	itemID := strings.TrimSpace(c.Query("item_id"))
	if itemID == "" {
		writeError(c, domain.NewDomainError("item_id", "is required"))
		return
	}
	qty, err := floatQuery(c, "quantity", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	urgency, ok := domain.ParseUrgency(c.Query("urgency"))
	if !ok {
		writeError(c, domain.NewDomainError("urgency", "unknown urgency %q", c.Query("urgency")))
		return
	}
	choice, err := h.service.ChooseVendor(c.Request.Context(), itemID, qty, urgency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, choice)
}

func (h *EngineHandler) Breakeven(c *gin.Context) {
	var req service.BreakevenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	be, err := h.service.Breakeven(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, be)
}

func (h *EngineHandler) GetTransferSuggestions(c *gin.Context) {
	suggestions, err := h.service.TransferSuggestions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if suggestions == nil {
		suggestions = []domain.TransferSuggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"data": suggestions})
}

func (h *EngineHandler) ListTransfers(c *gin.Context) {
	transfers, err := h.service.Transfers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": transfers})
}

func (h *EngineHandler) ApproveTransfer(c *gin.Context) {
	var suggestion domain.TransferSuggestion
	if err := c.ShouldBindJSON(&suggestion); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.service.ApproveTransfer(c.Request.Context(), suggestion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *EngineHandler) CompleteTransfer(c *gin.Context) {
	t, err := h.service.CompleteTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *EngineHandler) CancelTransfer(c *gin.Context) {
	t, err := h.service.CancelTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *EngineHandler) BestRoute(c *gin.Context) {
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		writeError(c, domain.NewDomainError("route", "from and to are required"))
		return
	}
	path, err := h.service.BestRoute(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":                  path.From,
		"to":                    path.To,
		"route_ids":             path.RouteIDs(),
		"hops":                  path.Hops(),
		"total_cost":            path.TotalCost,
		"handling_fee_per_unit": path.HandlingFeePerUnit,
		"transit_time":          path.TransitTime().String(),
	})
}

func (h *EngineHandler) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Policy())
}

func (h *EngineHandler) SimulatePolicy(c *gin.Context) {
	var draft domain.PolicyProfile
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	impact, err := h.service.SimulatePolicy(c.Request.Context(), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, impact)
}

// GetPolicyCurve samples the applied profile; service_level and buffer_pct
// override it for a draft.
func (h *EngineHandler) GetPolicyCurve(c *gin.Context) {
	current := h.service.Policy().Profile
	sl, err := floatQuery(c, "service_level", current.GlobalServiceLevel)
	if err != nil {
		writeError(c, err)
		return
	}
	buffer, err := floatQuery(c, "buffer_pct", current.SafetyStockBufferPct)
	if err != nil {
		writeError(c, err)
		return
	}
	grid, err := gridQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	draft := current.WithServiceLevel(sl).WithBufferPct(buffer)
	points, err := h.service.PolicyCurve(c.Request.Context(), draft, grid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points})
}

type applyPolicyRequest struct {
	Profile domain.PolicyProfile `json:"profile"`
	BasedOn int64                `json:"based_on" binding:"required"`
}

func (h *EngineHandler) ApplyPolicy(c *gin.Context) {
	var req applyPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	applied, err := h.service.ApplyPolicy(c.Request.Context(), req.Profile, req.BasedOn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applied)
}

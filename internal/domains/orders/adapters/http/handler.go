// Package http exposes the order endpoints: checkout, the customer
// read models, and the admin/courier lifecycle operations.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	catalogports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/application"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/shared/auth"
	apperrors "github.com/maiphun1412/thietbi-dientu-backend/internal/shared/errors"
)

// statusDisplay maps canonical statuses to the customer-facing labels.
// Only the boundary speaks Vietnamese; everything below stores the
// canonical enum.
var statusDisplay = map[domain.Status]string{
	domain.StatusPending:    "Chờ xác nhận",
	domain.StatusProcessing: "Đang xử lý",
	domain.StatusShipped:    "Đang giao hàng",
	domain.StatusCompleted:  "Hoàn thành",
	domain.StatusCancelled:  "Đã hủy",
}

// Handler serves the order endpoints.
type Handler struct {
	svc       *application.Service
	responder *apperrors.ChainedResponder
}

func NewHandler(svc *application.Service, responder *apperrors.ChainedResponder) *Handler {
	return &Handler{svc: svc, responder: responder}
}

// ErrorMappers translates order application errors into problem bodies.
func ErrorMappers() []apperrors.ErrorMapper {
	return []apperrors.ErrorMapper{
		func(err error) (apperrors.ProblemDetail, bool) {
			var validation *application.ValidationError
			if errors.As(err, &validation) {
				problem := apperrors.ErrValidation.WithDetail(validation.Message)
				if len(validation.Fields) > 0 {
					problem = problem.WithExtension("fields", validation.Fields)
				}
				return problem, true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			var variant *application.VariantRequiredError
			if errors.As(err, &variant) {
				return apperrors.ErrVariantRequired.
					WithDetail(variant.Error()).
					WithExtension("productId", variant.ProductID).
					WithExtension("hints", variant.Hints), true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			var stock *catalogports.InsufficientStockError
			if errors.As(err, &stock) {
				problem := apperrors.ErrInsufficientStock.
					WithDetail(stock.Error()).
					WithExtension("productId", stock.ProductID).
					WithExtension("requested", stock.Requested).
					WithExtension("available", stock.Available)
				if stock.OptionID != nil {
					problem = problem.WithExtension("optionId", *stock.OptionID)
				}
				return problem, true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			var transition *application.InvalidTransitionError
			if errors.As(err, &transition) {
				return apperrors.ErrInvalidTransition.
					WithDetail(transition.Error()).
					WithExtension("current", string(transition.Current)).
					WithExtension("requested", string(transition.Requested)).
					WithExtension("allowed", transition.Current.AllowedTransitions()), true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			if errors.Is(err, application.ErrForbidden) {
				return apperrors.ErrForbidden, true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			switch {
			case errors.Is(err, ports.ErrNotFound):
				return apperrors.NewNotFoundProblem("order", nil), true
			case errors.Is(err, ports.ErrShipperNotFound):
				return apperrors.NewNotFoundProblem("shipper", nil), true
			case errors.Is(err, catalogports.ErrNotFound):
				return apperrors.NewNotFoundProblem("product", nil), true
			}
			return apperrors.ProblemDetail{}, false
		},
	}
}

// Register mounts the order routes. authn must populate the auth claims;
// the role guards come from the shared auth package.
func (h *Handler) Register(r gin.IRouter, authn gin.HandlerFunc, requireAdmin, requireShipper gin.HandlerFunc) {
	orders := r.Group("/orders", authn)
	orders.POST("/checkout", h.Checkout)
	orders.GET("/my", h.MyOrders)
	orders.GET("/:id/summary", h.Summary)
	orders.GET("/:id/items", h.Items)
	orders.POST("/:id/cancel", h.Cancel)

	orders.GET("", requireAdmin, h.List)
	orders.GET("/:id", requireAdmin, h.Get)
	orders.GET("/:id/history", requireAdmin, h.History)
	orders.PUT("/:id/status", requireAdmin, h.UpdateStatus)
	orders.POST("/:id/assign-shipper", requireAdmin, h.AssignShipper)
	orders.POST("/:id/unassign-shipper", requireAdmin, h.UnassignShipper)
	orders.DELETE("/:id", requireAdmin, h.Delete)

	r.PATCH("/shipments/:id/status", authn, requireShipper, h.UpdateShipmentStatus)
}

// --- requests --------------------------------------------------------------

type checkoutItemRequest struct {
	ProductID int64  `json:"productId" binding:"required"`
	OptionID  *int64 `json:"optionId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity" binding:"required"`
}

type checkoutAddressRequest struct {
	AddressID *int64 `json:"addressId"`
	Line      string `json:"line"`
	Ward      string `json:"ward"`
	District  string `json:"district"`
	City      string `json:"city"`
}

type checkoutRequest struct {
	Email         string                 `json:"email"`
	FullName      string                 `json:"fullName"`
	Phone         string                 `json:"phone"`
	Address       checkoutAddressRequest `json:"address"`
	PaymentMethod string                 `json:"paymentMethod"`
	Note          string                 `json:"note"`
	Items         []checkoutItemRequest  `json:"items" binding:"required"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type assignShipperRequest struct {
	ShipperID int64 `json:"shipperId" binding:"required"`
}

type cancelRequest struct {
	Note string `json:"note"`
}

// --- responses -------------------------------------------------------------

type itemResponse struct {
	ProductID int64  `json:"productId"`
	OptionID  *int64 `json:"optionId,omitempty"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

type orderResponse struct {
	ID            int64          `json:"id"`
	Status        string         `json:"status"`
	StatusDisplay string         `json:"statusDisplay"`
	Note          string         `json:"note,omitempty"`
	Total         int64          `json:"total"`
	ShipperID     *int64         `json:"shipperId,omitempty"`
	PaymentEmail  string         `json:"paymentEmail,omitempty"`
	Verified      bool           `json:"paymentVerified"`
	CreatedAt     time.Time      `json:"createdAt"`
	Items         []itemResponse `json:"items"`
}

type checkoutResponse struct {
	Order       orderResponse  `json:"order"`
	Method      string         `json:"paymentMethod"`
	RequiresOtp bool           `json:"requiresOtp"`
	Guidance    map[string]any `json:"paymentGuidance,omitempty"`
}

type addressResponse struct {
	ID       int64  `json:"id"`
	Line     string `json:"line"`
	Ward     string `json:"ward,omitempty"`
	District string `json:"district"`
	City     string `json:"city"`
}

type paymentSnapshotResponse struct {
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

type summaryResponse struct {
	Order   orderResponse            `json:"order"`
	Address *addressResponse         `json:"address,omitempty"`
	Payment *paymentSnapshotResponse `json:"payment,omitempty"`
}

type historyEntryResponse struct {
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  *int64    `json:"changedBy,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemResponse{
			ProductID: item.ProductID,
			OptionID:  item.OptionID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return orderResponse{
		ID:            order.ID,
		Status:        string(order.Status),
		StatusDisplay: statusDisplay[order.Status],
		Note:          order.Note,
		Total:         order.Total,
		ShipperID:     order.ShipperID,
		PaymentEmail:  order.PaymentEmail,
		Verified:      order.PaymentVerifiedAt != nil,
		CreatedAt:     order.CreatedAt,
		Items:         items,
	}
}

func actorFrom(c *gin.Context) application.Actor {
	claims := auth.FromContext(c)
	if claims == nil {
		return application.Actor{}
	}
	return application.Actor{UserID: claims.UserID, Role: claims.Role}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- handlers --------------------------------------------------------------

func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	claims := auth.FromContext(c)

	input := application.CheckoutInput{
		UserID:   claims.UserID,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Address: application.CheckoutAddressInput{
			AddressID: req.Address.AddressID,
			Line:      req.Address.Line,
			Ward:      req.Address.Ward,
			District:  req.Address.District,
			City:      req.Address.City,
		},
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
	}
	if input.Email == "" {
		input.Email = claims.Email
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, application.CheckoutItemInput{
			ProductID: item.ProductID,
			OptionID:  item.OptionID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.svc.Checkout(c.Request.Context(), input)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{
		Order:       toOrderResponse(result.Order),
		Method:      string(result.Method),
		RequiresOtp: result.RequiresOtp,
		Guidance:    result.Guidance,
	})
}

func (h *Handler) MyOrders(c *gin.Context) {
	claims := auth.FromContext(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	result, err := h.svc.MyOrders(c.Request.Context(), claims.UserID, page, pageSize)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(result.Orders))
	for _, order := range result.Orders {
		out = append(out, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":    out,
		"totalRows": result.Total,
		"page":      result.Page,
		"pageSize":  result.PageSize,
	})
}

func (h *Handler) Summary(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}

	resp := summaryResponse{Order: toOrderResponse(summary.Order)}
	if summary.Address != nil {
		resp.Address = &addressResponse{
			ID:       summary.Address.ID,
			Line:     summary.Address.Line,
			Ward:     summary.Address.Ward,
			District: summary.Address.District,
			City:     summary.Address.City,
		}
	}
	if summary.Payment != nil {
		resp.Payment = &paymentSnapshotResponse{
			Method:    summary.Payment.Method,
			Status:    summary.Payment.Status,
			Amount:    summary.Payment.Amount,
			CreatedAt: summary.Payment.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Items serves just the line items; ownership enforcement rides on the
// same rule as the summary.
func (h *Handler) Items(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toOrderResponse(summary.Order).Items})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) List(c *gin.Context) {
	var filter *domain.Status
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
			return
		}
		filter = &status
	}
	orders, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (h *Handler) History(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	entries, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	out := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyEntryResponse{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			ChangedBy:  entry.ChangedBy,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	order, err := h.svc.Transition(c.Request.Context(), id, status, actorFrom(c), req.Note)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.svc.Cancel(c.Request.Context(), id, actorFrom(c), req.Note)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) AssignShipper(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	var req assignShipperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	order, err := h.svc.AssignShipper(c.Request.Context(), id, req.ShipperID, actorFrom(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) UnassignShipper(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	order, err := h.svc.UnassignShipper(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) UpdateShipmentStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	order, err := h.svc.UpdateShipmentStatus(c.Request.Context(), id, req.Status, actorFrom(c))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

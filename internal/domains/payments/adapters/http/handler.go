// Package http exposes the payment verification endpoints: OTP
// issuance, verification, and the admin settlement path.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/application"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/shared/auth"
	apperrors "github.com/maiphun1412/thietbi-dientu-backend/internal/shared/errors"
)

// Handler serves the payment endpoints.
type Handler struct {
	svc       *application.Service
	responder *apperrors.ChainedResponder
}

func NewHandler(svc *application.Service, responder *apperrors.ChainedResponder) *Handler {
	return &Handler{svc: svc, responder: responder}
}

// ErrorMappers translates payment application errors into problem bodies.
func ErrorMappers() []apperrors.ErrorMapper {
	return []apperrors.ErrorMapper{
		func(err error) (apperrors.ProblemDetail, bool) {
			var card *application.CardValidationError
			if errors.As(err, &card) {
				return apperrors.NewValidationProblem(card.Fields), true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			var delivery *application.DeliveryError
			if errors.As(err, &delivery) {
				// The code was stored; the client should offer resend.
				return apperrors.ErrInternal.
					WithDetail("failed to deliver the verification code").
					WithExtension("retriable", true), true
			}
			return apperrors.ProblemDetail{}, false
		},
		func(err error) (apperrors.ProblemDetail, bool) {
			switch {
			case errors.Is(err, application.ErrForbidden):
				return apperrors.ErrForbidden, true
			case errors.Is(err, application.ErrExpired):
				return apperrors.ErrOtpExpired, true
			case errors.Is(err, application.ErrIncorrect):
				return apperrors.ErrOtpIncorrect, true
			case errors.Is(err, application.ErrTooManyAttempts):
				return apperrors.ErrOtpLocked, true
			case errors.Is(err, application.ErrTooSoon):
				return apperrors.ErrOtpTooSoon, true
			case errors.Is(err, ports.ErrNotFound):
				return apperrors.NewNotFoundProblem("payment", nil), true
			}
			return apperrors.ProblemDetail{}, false
		},
	}
}

// Register mounts the payment routes. authn requires a token; optional
// lets guests through so they can verify with their bound email.
func (h *Handler) Register(r gin.IRouter, authn, optional, requireAdmin gin.HandlerFunc) {
	r.POST("/orders/:id/send-otp", authn, h.SendOtp)

	payments := r.Group("/payments")
	payments.POST("/checkout", optional, h.IssueByEmail)
	payments.POST("/otp/verify", optional, h.Verify)
	payments.POST("/otp/resend", optional, h.Resend)
	payments.GET("/intent/:orderId", optional, h.Intent)
	payments.GET("/order/:orderId", optional, h.LatestByOrder)
	payments.GET("", authn, requireAdmin, h.List)
	payments.POST("/mark-paid/:orderId", authn, requireAdmin, h.MarkPaid)
}

// --- requests --------------------------------------------------------------

type issueByEmailRequest struct {
	OrderID int64  `json:"orderId" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
}

type verifyRequest struct {
	OrderID    int64  `json:"orderId" binding:"required"`
	Code       string `json:"code" binding:"required"`
	Email      string `json:"email"`
	CardNumber string `json:"cardNumber"`
	CardExpiry string `json:"cardExpiry"`
	CardCvv    string `json:"cardCvv"`
}

type resendRequest struct {
	OrderID int64  `json:"orderId" binding:"required"`
	Email   string `json:"email"`
}

type paymentResponse struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPaymentResponse(payment *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:        payment.ID,
		OrderID:   payment.OrderID,
		Method:    string(payment.Method),
		Status:    string(payment.Status),
		Amount:    payment.Amount,
		CreatedAt: payment.CreatedAt,
	}
}

// callerFrom builds the caller identity from the validated claims,
// falling back to the email a guest supplied in the request body.
func callerFrom(c *gin.Context, fallbackEmail string) application.Caller {
	if claims := auth.FromContext(c); claims != nil {
		return application.Caller{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
	}
	return application.Caller{Email: fallbackEmail}
}

func orderIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- handlers --------------------------------------------------------------

func (h *Handler) SendOtp(c *gin.Context) {
	id, ok := orderIDParam(c, "id")
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	destination, err := h.svc.Issue(c.Request.Context(), id, callerFrom(c, ""))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentTo": destination})
}

func (h *Handler) IssueByEmail(c *gin.Context) {
	var req issueByEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	if err := h.svc.IssueByEmail(c.Request.Context(), req.OrderID, req.Email, callerFrom(c, req.Email)); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentTo": req.Email})
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	input := application.VerifyInput{OrderID: req.OrderID, Code: req.Code}
	if req.CardNumber != "" || req.CardExpiry != "" || req.CardCvv != "" {
		input.Card = &domain.CardDetails{
			Number: req.CardNumber,
			Expiry: req.CardExpiry,
			CVV:    req.CardCvv,
		}
	}
	result, err := h.svc.Verify(c.Request.Context(), input, callerFrom(c, req.Email))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verified":        true,
		"alreadyVerified": result.AlreadyVerified,
	})
}

func (h *Handler) Resend(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	if err := h.svc.Resend(c.Request.Context(), req.OrderID, callerFrom(c, req.Email)); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resent": true})
}

func (h *Handler) Intent(c *gin.Context) {
	id, ok := orderIDParam(c, "orderId")
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	guidance, err := h.svc.Intent(c.Request.Context(), id)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, guidance)
}

func (h *Handler) LatestByOrder(c *gin.Context) {
	id, ok := orderIDParam(c, "orderId")
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	payment, err := h.svc.LatestByOrder(c.Request.Context(), id)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) List(c *gin.Context) {
	payments, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toPaymentResponse(payment))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, ok := orderIDParam(c, "orderId")
	if !ok {
		h.responder.Respond(c, apperrors.ErrValidation.WithDetail("invalid order id"))
		return
	}
	if err := h.svc.MarkPaid(c.Request.Context(), id); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": true})
}

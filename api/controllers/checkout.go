package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshmartsg/freshmart-backend/api/middleware"
	"github.com/freshmartsg/freshmart-backend/api/responses"
	"github.com/freshmartsg/freshmart-backend/api/validators"
	"github.com/freshmartsg/freshmart-backend/internal/checkout"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
)

type checkoutRequest struct {
	DeliveryMethod  string          `json:"delivery_method" validate:"required"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	CustomerName    string          `json:"customer_name" validate:"required,min=2,max=120"`
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	ShippingPhone   string          `json:"shipping_phone" validate:"omitempty,max=32"`
	DeliveryAddress string          `json:"delivery_address" validate:"omitempty,max=500"`
}

type checkoutResponse struct {
	Order   *orderView `json:"order,omitempty"`
	Saved   bool       `json:"saved"`
	Warning string     `json:"warning,omitempty"`
}

func CheckoutPlace(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), cartActor(r), checkout.Input{
			DeliveryMethod:  enums.DeliveryMethod(req.DeliveryMethod),
			DeliveryFee:     req.DeliveryFee,
			PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			ShippingPhone:   req.ShippingPhone,
			DeliveryAddress: req.DeliveryAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{Saved: result.Saved, Warning: result.Warning}
		if result.Order != nil {
			view := newOrderView(*result.Order)
			resp.Order = &view
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

type paymentCaptureRequest struct {
	Method    string `json:"method" validate:"required"`
	Reference string `json:"reference" validate:"required,min=4,max=128"`
}

// PaymentsCapture records an external gateway capture against the browser
// session so the next checkout attempt for pay-now or card can proceed.
func PaymentsCapture(proofs *checkout.CaptureProofStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if proofs == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment capture unavailable"))
			return
		}

		var req paymentCaptureRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethod(req.Method)
		if !method.IsValid() || !method.RequiresCaptureProof() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment method does not take a capture"))
			return
		}

		sessionID := middleware.CartSessionIDFromContext(r.Context())
		proof := checkout.CaptureProof{
			Reference:  req.Reference,
			Method:     method,
			CapturedAt: time.Now().UTC(),
		}
		if err := proofs.Record(r.Context(), sessionID, proof); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "captured"})
	}
}

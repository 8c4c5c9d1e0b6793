package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
)

type CreatePaymentRequest struct {
	PaymentType models.PaymentType `json:"payment_type" binding:"required,oneof=card paypal"`
	CardNumber  *string            `json:"card_number"`
	CardHolder  *string            `json:"card_holder" binding:"omitempty,min=2,max=100"`
	ExpiryMonth *int               `json:"expiry_month" binding:"omitempty,min=1,max=12"`
	ExpiryYear  *int               `json:"expiry_year" binding:"omitempty,min=2000,max=2100"`
	CardType    *string            `json:"card_type" binding:"omitempty,max=20"`
	PaypalEmail *string            `json:"paypal_email" binding:"omitempty,email_addr"`
	IsDefault   bool               `json:"is_default"`
}

type UpdatePaymentRequest struct {
	CardHolder  *string `json:"card_holder" binding:"omitempty,min=2,max=100"`
	ExpiryMonth *int    `json:"expiry_month" binding:"omitempty,min=1,max=12"`
	ExpiryYear  *int    `json:"expiry_year" binding:"omitempty,min=2000,max=2100"`
	PaypalEmail *string `json:"paypal_email" binding:"omitempty,email_addr"`
	IsDefault   *bool   `json:"is_default"`
}

// MaskCardNumber keeps only the last four digits.
func MaskCardNumber(number string) string {
	last4 := number
	if len(number) > 4 {
		last4 = number[len(number)-4:]
	}
	return "**** **** **** " + last4
}

// cardBrand guesses the network from the leading digits.
func cardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	case len(number) > 1 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(number, "2"):
		return "mastercard"
	case strings.HasPrefix(number, "6"):
		return "discover"
	default:
		return "unknown"
	}
}

// luhnValid reports whether a digit string passes the Luhn checksum.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func expired(month, year int, now time.Time) bool {
	return year < now.Year() || (year == now.Year() && month < int(now.Month()))
}

// validatePaymentShape enforces that a card carries only card fields and a
// PayPal method only an email.
func validatePaymentShape(req *CreatePaymentRequest, now time.Time) error {
	hasCard := req.CardNumber != nil || req.CardHolder != nil || req.ExpiryMonth != nil ||
		req.ExpiryYear != nil || req.CardType != nil
	switch req.PaymentType {
	case models.PaymentCard:
		if req.PaypalEmail != nil {
			return apperr.Validation("paypal_email is not allowed for card payments")
		}
		if req.CardNumber == nil || req.CardHolder == nil || req.ExpiryMonth == nil || req.ExpiryYear == nil {
			return apperr.Validation("card_number, card_holder, expiry_month and expiry_year are required for card payments")
		}
		number := strings.ReplaceAll(strings.ReplaceAll(*req.CardNumber, " ", ""), "-", "")
		if len(number) < 12 || len(number) > 19 || !luhnValid(number) {
			return apperr.Validation("card_number is invalid")
		}
		if expired(*req.ExpiryMonth, *req.ExpiryYear, now) {
			return apperr.Validation("card is expired")
		}
		*req.CardNumber = number
	case models.PaymentPaypal:
		if hasCard {
			return apperr.Validation("card fields are not allowed for paypal payments")
		}
		if req.PaypalEmail == nil {
			return apperr.Validation("paypal_email is required for paypal payments")
		}
	}
	return nil
}

func (h *Handler) ListPayments(c *gin.Context) {
	var payments []models.Payment
	err := h.db.Where("user_id = ?", middleware.GetUserID(c)).
		Order("is_default desc, id").Find(&payments).Error
	if err != nil {
		h.fail(c, apperr.Internal("failed to list payment methods", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(payments), "payments": payments})
}

// CreatePayment stores a payment method with the card number masked. The
// first method a user adds becomes their default.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if !h.bind(c, &req) {
		return
	}
	if err := validatePaymentShape(&req, h.now()); err != nil {
		h.fail(c, err)
		return
	}
	userID := middleware.GetUserID(c)

	payment := models.Payment{
		UserID:      userID,
		PaymentType: req.PaymentType,
		CardHolder:  req.CardHolder,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		PaypalEmail: req.PaypalEmail,
		IsDefault:   req.IsDefault,
	}
	if req.PaymentType == models.PaymentCard {
		masked := MaskCardNumber(*req.CardNumber)
		payment.CardNumber = &masked
		brand := cardBrand(*req.CardNumber)
		if req.CardType != nil {
			brand = strings.ToLower(*req.CardType)
		}
		payment.CardType = &brand
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		hasAny, err := exists(tx, &models.Payment{}, "user_id = ?", userID)
		if err != nil {
			return err
		}
		if !hasAny {
			payment.IsDefault = true
		}
		if payment.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		h.fail(c, apperr.Internal("failed to create payment method", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Payment method added", "payment": payment})
}

func clearDefault(tx *gorm.DB, userID uint) error {
	return tx.Model(&models.Payment{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (h *Handler) loadOwnPayment(c *gin.Context) (*models.Payment, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var payment models.Payment
	if err := h.db.First(&payment, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Payment method"))
		return nil, false
	}
	if payment.UserID != middleware.GetUserID(c) {
		h.fail(c, apperr.Forbidden("This payment method does not belong to you"))
		return nil, false
	}
	return &payment, true
}

func (h *Handler) GetPayment(c *gin.Context) {
	payment, ok := h.loadOwnPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if !h.bind(c, &req) {
		return
	}
	payment, ok := h.loadOwnPayment(c)
	if !ok {
		return
	}

	switch payment.PaymentType {
	case models.PaymentCard:
		if req.PaypalEmail != nil {
			h.fail(c, apperr.Validation("paypal_email is not allowed for card payments"))
			return
		}
		if req.CardHolder != nil {
			payment.CardHolder = req.CardHolder
		}
		if req.ExpiryMonth != nil {
			payment.ExpiryMonth = req.ExpiryMonth
		}
		if req.ExpiryYear != nil {
			payment.ExpiryYear = req.ExpiryYear
		}
		if payment.ExpiryMonth != nil && payment.ExpiryYear != nil &&
			expired(*payment.ExpiryMonth, *payment.ExpiryYear, h.now()) {
			h.fail(c, apperr.Validation("card is expired"))
			return
		}
	case models.PaymentPaypal:
		if req.CardHolder != nil || req.ExpiryMonth != nil || req.ExpiryYear != nil {
			h.fail(c, apperr.Validation("card fields are not allowed for paypal payments"))
			return
		}
		if req.PaypalEmail != nil {
			payment.PaypalEmail = req.PaypalEmail
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault != nil && *req.IsDefault && !payment.IsDefault {
			if err := clearDefault(tx, payment.UserID); err != nil {
				return err
			}
			payment.IsDefault = true
		} else if req.IsDefault != nil && !*req.IsDefault {
			payment.IsDefault = false
		}
		return tx.Save(payment).Error
	})
	if err != nil {
		h.fail(c, apperr.Internal("failed to update payment method", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment method updated", "payment": payment})
}

func (h *Handler) DeletePayment(c *gin.Context) {
	payment, ok := h.loadOwnPayment(c)
	if !ok {
		return
	}
	if err := h.db.Delete(payment).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete payment method", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment method deleted"})
}

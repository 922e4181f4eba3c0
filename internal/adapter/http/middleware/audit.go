package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// auditRoute names the action recorded for a successful write on a route.
type auditRoute struct {
	action   domain.AuditAction
	resource string
}

var auditRoutes = map[string]auditRoute{
	"POST /v1/verify-otp":             {domain.AuditActionSignIn, "account"},
	"POST /v1/login":                  {domain.AuditActionLogin, "session"},
	"POST /v1/transactions/add-money": {domain.AuditActionAddMoney, "transaction"},
	"POST /v1/transactions/withdraw":  {domain.AuditActionWithdraw, "transaction"},
	"POST /v1/admin/update-ts-status": {domain.AuditActionCompleteTx, "transaction"},
	"POST /v1/deposit-address":        {domain.AuditActionDepositAddress, "payment_intent"},
	"POST /v1/bank-accounts":          {domain.AuditActionAddBankAccount, "bank_account"},
	"POST /v1/webhook":                {domain.AuditActionWebhookCredit, "payment_intent"},
}

// AuditLog records successful write operations after the handler has run.
// Soft failures are sent with 200 but leave an error on the context, so
// those are skipped too.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 || len(c.Errors) > 0 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		var accountID *uuid.UUID
		if id, ok := AccountID(c); ok {
			accountID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			AccountID:    accountID,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	route, ok := auditRoutes[method+" "+path]
	if !ok {
		return "", ""
	}
	return route.action, route.resource
}

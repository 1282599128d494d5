package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful write
// operations after the response is sent. Route templates are mapped to
// audit actions; unmapped routes are not audited.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if v, exists := c.Get(CtxUserID); exists {
			if id, ok := v.(uuid.UUID); ok {
				actorID = &id
			}
		}

		details, _ := json.Marshal(map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			Details:      string(details),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/ledger/transfers":
		return domain.AuditActionTransfer, "transaction"
	case "/api/v1/ledger/users/:id/credit":
		return domain.AuditActionAdminCredit, "wallet"
	case "/api/v1/ledger/users/:id/debit":
		return domain.AuditActionAdminDebit, "wallet"
	case "/api/v1/wallets/:id/freeze":
		return domain.AuditActionWalletFreeze, "wallet"
	case "/api/v1/wallets/:id/unfreeze":
		return domain.AuditActionWalletUnfreeze, "wallet"
	case "/api/v1/wallets/:id/close":
		return domain.AuditActionWalletClose, "wallet"
	case "/api/v1/recharges":
		return domain.AuditActionRechargeRequest, "recharge"
	case "/api/v1/recharges/:id/approve":
		return domain.AuditActionRechargeApprove, "recharge"
	case "/api/v1/recharges/:id/reject":
		return domain.AuditActionRechargeReject, "recharge"
	case "/api/v1/affiliations":
		return domain.AuditActionAffiliationRequest, "affiliation"
	case "/api/v1/affiliations/:id/approve":
		return domain.AuditActionAffiliationApprove, "affiliation"
	case "/api/v1/disputes":
		return domain.AuditActionDisputeOpen, "dispute"
	case "/api/v1/disputes/:id/assign":
		return domain.AuditActionDisputeAssign, "dispute"
	case "/api/v1/disputes/:id/reassign":
		return domain.AuditActionDisputeReassign, "dispute"
	case "/api/v1/disputes/:id/resolve":
		return domain.AuditActionDisputeResolve, "dispute"
	}
	return "", ""
}

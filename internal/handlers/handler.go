package handlers

import (
	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resources announced to real-time subscribers.
const (
	ResourceCostCenters = "cost-centers"
	ResourceUsers       = "users"
)

// Notifier announces committed writes to the writer's tenant. It is best
// effort and never fails the request.
type Notifier interface {
	Notify(tenantID, resource string, action protocol.Action, data any) int
}

// Handler holds what every endpoint needs.
type Handler struct {
	db           *gorm.DB
	tokens       *auth.TokenService
	notifier     Notifier
	cookieSecure bool
	logger       *zap.Logger
}

func New(db *gorm.DB, tokens *auth.TokenService, notifier Notifier, cookieSecure bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:           db,
		tokens:       tokens,
		notifier:     notifier,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *Handler) notify(tenantID, resource string, action protocol.Action, data any) {
	if h.notifier == nil {
		return
	}
	h.notifier.Notify(tenantID, resource, action, data)
}

package service

import (
	"context"
	"time"

	"github.com/tricykol/auth-backend/internal/goroutine"
	"github.com/tricykol/auth-backend/internal/logger"
	"github.com/tricykol/auth-backend/internal/models"
)

// AuditStore — зависимость сервиса аудита от хранилища.
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
}

// AuditService пишет журнал событий OTP в фоне: запись best effort и не
// должна влиять ни на задержку, ни на исход запроса.
type AuditService struct {
	store AuditStore
}

// NewAuditService создаёт сервис аудита.
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Record асинхронно фиксирует событие. Контекст запроса не используется:
// запись должна пережить завершение HTTP запроса.
func (s *AuditService) Record(phoneNumber, action, outcome, detail, ipAddress string) {
	entry := &models.AuditEntry{
		Phone:     phoneNumber,
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
		IPAddress: ipAddress,
	}

	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.store.Insert(ctx, entry); err != nil {
			logger.WithComponent("audit_service").WithError(err).Warn("failed to write audit entry")
		}
	})
}

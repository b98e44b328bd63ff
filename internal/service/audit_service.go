package service

import (
	"context"
	"fmt"

	"navconsole/internal/repository"
	"navconsole/pkg/pagination"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Account    string `json:"account"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter repository.AuditFilter, page pagination.Params) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	userRepo  repository.UserRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository, userRepo repository.UserRepository) AuditService {
	return &auditService{auditRepo: auditRepo, userRepo: userRepo}
}

// GetAuditLogs returns a page of entries with actor accounts resolved. Deleted or
// missing actors show as "System".
func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditFilter, page pagination.Params) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	var actorIDs []uuid.UUID
	for _, l := range logs {
		if l.UserID != nil {
			actorIDs = append(actorIDs, *l.UserID)
		}
	}
	users, err := s.userRepo.FindByIDs(ctx, actorIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit actors: %w", err)
	}
	accounts := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		accounts[u.ID] = u.Account
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		account := "System"
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
			if a, ok := accounts[*l.UserID]; ok {
				account = a
			}
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Account:    account,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format(timeLayout),
		})
	}

	return res, total, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"navconsole/internal/model"
	"navconsole/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminRoleName is the role that receives every catalog permission on seed.
const AdminRoleName = "admin"

// SeedAdmin describes the bootstrap administrator. An empty Account skips the user.
type SeedAdmin struct {
	Account  string
	Password string
	Email    string
}

type SeedService interface {
	// Seed makes sure one api permission exists per code, the admin role holds all of
	// them, and the admin user holds the admin role. Running it again changes nothing.
	Seed(ctx context.Context, codes []string, admin SeedAdmin) error
}

type seedService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	permRepo  repository.PermissionRepository
	txManager repository.TransactionManager
}

func NewSeedService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	txManager repository.TransactionManager,
) SeedService {
	return &seedService{userRepo: userRepo, roleRepo: roleRepo, permRepo: permRepo, txManager: txManager}
}

func (s *seedService) Seed(ctx context.Context, codes []string, admin SeedAdmin) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		permIDs := make([]uuid.UUID, 0, len(codes))
		for _, code := range codes {
			p, err := s.permRepo.FindByCode(txCtx, code)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				p = &model.Permission{Name: code, Code: code, Type: model.PermissionTypeAPI}
				if err := s.permRepo.Create(txCtx, p); err != nil {
					return fmt.Errorf("failed to seed permission '%s': %w", code, err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to look up permission '%s': %w", code, err)
			}
			permIDs = append(permIDs, p.ID)
		}

		role, err := s.roleRepo.FindByName(txCtx, AdminRoleName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = &model.Role{Name: AdminRoleName, Description: "Full access to the console", Status: model.StatusActive}
			if err := s.roleRepo.Create(txCtx, role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", AdminRoleName, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up role '%s': %w", AdminRoleName, err)
		}

		existing := []model.Role{*role}
		if err := s.roleRepo.LoadPermissions(txCtx, existing); err != nil {
			return err
		}
		for _, p := range existing[0].Permissions {
			permIDs = append(permIDs, p.ID)
		}
		if err := s.roleRepo.ReplacePermissions(txCtx, role.ID, permIDs); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", AdminRoleName, err)
		}

		if admin.Account == "" {
			return nil
		}
		return s.seedAdminUser(txCtx, role.ID, admin)
	})
}

func (s *seedService) seedAdminUser(ctx context.Context, roleID uuid.UUID, admin SeedAdmin) error {
	user, err := s.userRepo.FindByAccount(ctx, admin.Account)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := validateStruct(CreateUserRequest{Account: admin.Account, Password: admin.Password, Email: admin.Email}); err != nil {
			return fmt.Errorf("admin user: %w", err)
		}
		hashed, err := hashPassword(admin.Password)
		if err != nil {
			return err
		}
		user = &model.User{Account: admin.Account, Email: admin.Email, Password: hashed, Status: model.StatusActive}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to seed admin user: %w", storeErr(err, "user"))
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	roleIDs, err := s.userRepo.RoleIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, id := range roleIDs {
		if id == roleID {
			return nil
		}
	}
	return s.userRepo.ReplaceRoles(ctx, user.ID, append(roleIDs, roleID))
}

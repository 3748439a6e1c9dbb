package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
)

// TenantService 租户管理，一个用户最多属于一个租户
type TenantService struct {
	tenantRepo repository.TenantRepository
	userRepo   repository.UserRepository
	storeRepo  repository.StoreRepository
	logger     *zap.Logger
}

func NewTenantService(
	tenantRepo repository.TenantRepository,
	userRepo repository.UserRepository,
	storeRepo repository.StoreRepository,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		storeRepo:  storeRepo,
		logger:     logger.Named("tenant"),
	}
}

// Create 为当前用户创建租户
func (s *TenantService) Create(ctx context.Context, userID int64, req *dto.CreateTenantRequest) (*dto.TenantInfo, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TenantID != nil {
		return nil, ErrTenantExists
	}

	tenant := &model.Tenant{Name: strings.TrimSpace(req.Name)}
	if err := s.tenantRepo.CreateForUser(ctx, tenant, user.ID); err != nil {
		return nil, fmt.Errorf("创建租户失败: %w", err)
	}
	s.logger.Info("tenant created", zap.Int64("tenant_id", tenant.ID), zap.Int64("user_id", user.ID))
	return &dto.TenantInfo{ID: tenant.ID, Name: tenant.Name, CreatedAt: tenant.CreatedAt}, nil
}

func (s *TenantService) GetMine(ctx context.Context, userID int64) (*dto.TenantInfo, error) {
	tenant, err := s.mine(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toInfo(ctx, tenant)
}

// UpdateMine 仅租户 owner 可改名
func (s *TenantService) UpdateMine(ctx context.Context, userID int64, req *dto.UpdateTenantRequest) (*dto.TenantInfo, error) {
	if err := s.requireOwner(ctx, userID); err != nil {
		return nil, err
	}
	tenant, err := s.mine(ctx, userID)
	if err != nil {
		return nil, err
	}

	tenant.Name = strings.TrimSpace(req.Name)
	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("更新租户失败: %w", err)
	}
	return s.toInfo(ctx, tenant)
}

// DeleteMine 删除租户及其全部店铺数据，用户保留但解除关联
func (s *TenantService) DeleteMine(ctx context.Context, userID int64) error {
	if err := s.requireOwner(ctx, userID); err != nil {
		return err
	}
	tenant, err := s.mine(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.tenantRepo.Delete(ctx, tenant.ID); err != nil {
		return fmt.Errorf("删除租户失败: %w", err)
	}
	s.logger.Info("tenant deleted", zap.Int64("tenant_id", tenant.ID), zap.Int64("user_id", userID))
	return nil
}

// ResolveTenantID 返回用户所属租户 ID，未加入租户时返回 ErrNoTenant
func (s *TenantService) ResolveTenantID(ctx context.Context, userID int64) (int64, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.TenantID == nil {
		return 0, ErrNoTenant
	}
	return *user.TenantID, nil
}

// ==================== 内部方法 ====================

func (s *TenantService) getUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *TenantService) mine(ctx context.Context, userID int64) (*model.Tenant, error) {
	tenantID, err := s.ResolveTenantID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	return tenant, err
}

func (s *TenantService) requireOwner(ctx context.Context, userID int64) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TenantID == nil {
		return ErrNoTenant
	}
	if user.Role != model.RoleOwner {
		return ErrNotTenantOwner
	}
	return nil
}

func (s *TenantService) toInfo(ctx context.Context, tenant *model.Tenant) (*dto.TenantInfo, error) {
	_, count, err := s.storeRepo.List(ctx, repository.StoreFilter{TenantID: tenant.ID, Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	return &dto.TenantInfo{
		ID:         tenant.ID,
		Name:       tenant.Name,
		StoreCount: count,
		CreatedAt:  tenant.CreatedAt,
	}, nil
}

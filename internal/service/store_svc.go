package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/config"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/pkg/shopify"
)

// StoreVerifier 校验店铺凭证，nil 表示不校验
type StoreVerifier interface {
	VerifyShop(ctx context.Context, domain, accessToken string) (*shopify.ShopInfo, error)
}

const devTenantName = "Development"

// ==================== StoreService 店铺管理 ====================

type StoreService struct {
	storeRepo  repository.StoreRepository
	tenantRepo repository.TenantRepository
	tenants    *TenantService
	verifier   StoreVerifier
	logger     *zap.Logger
}

func NewStoreService(
	storeRepo repository.StoreRepository,
	tenantRepo repository.TenantRepository,
	tenants *TenantService,
	verifier StoreVerifier,
	logger *zap.Logger,
) *StoreService {
	return &StoreService{
		storeRepo:  storeRepo,
		tenantRepo: tenantRepo,
		tenants:    tenants,
		verifier:   verifier,
		logger:     logger.Named("store"),
	}
}

// Connect 接入店铺；用户尚未加入租户时以店铺名创建租户
func (s *StoreService) Connect(ctx context.Context, userID int64, req *dto.ConnectStoreRequest) (*dto.StoreInfo, error) {
	domain, err := shopify.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, ErrInvalidDomain
	}

	if _, err := s.storeRepo.GetByDomain(ctx, domain); err == nil {
		return nil, ErrStoreExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	store := &model.Store{
		Name:        strings.TrimSpace(req.Name),
		Domain:      domain,
		AccessToken: req.AccessToken,
	}
	if s.verifier != nil {
		info, err := s.verifier.VerifyShop(ctx, domain, req.AccessToken)
		if err != nil {
			s.logger.Warn("store verify failed", zap.String("domain", domain), zap.Error(err))
			return nil, ErrStoreVerifyFailed.Wrap(err)
		}
		if store.Name == "" {
			store.Name = info.Name
		}
		store.Currency = info.Currency
	}
	if store.Name == "" {
		store.Name = domain
	}

	tenantID, err := s.tenants.ResolveTenantID(ctx, userID)
	if errors.Is(err, ErrNoTenant) {
		tenant := &model.Tenant{Name: store.Name}
		if err := s.tenantRepo.CreateForUser(ctx, tenant, userID); err != nil {
			return nil, fmt.Errorf("创建租户失败: %w", err)
		}
		tenantID = tenant.ID
	} else if err != nil {
		return nil, err
	}

	store.TenantID = tenantID
	if err := s.storeRepo.Create(ctx, store); err != nil {
		return nil, fmt.Errorf("创建店铺失败: %w", err)
	}

	s.logger.Info("store connected",
		zap.Int64("store_id", store.ID),
		zap.Int64("tenant_id", tenantID),
		zap.String("domain", domain),
	)
	return toStoreInfo(store), nil
}

func (s *StoreService) List(ctx context.Context, userID int64, req *dto.StoreListRequest) (*dto.StoreListResponse, error) {
	tenantID, err := s.tenants.ResolveTenantID(ctx, userID)
	if errors.Is(err, ErrNoTenant) {
		return &dto.StoreListResponse{List: []dto.StoreInfo{}, Page: req.Page, PageSize: req.PageSize}, nil
	}
	if err != nil {
		return nil, err
	}

	stores, total, err := s.storeRepo.List(ctx, repository.StoreFilter{
		TenantID: tenantID,
		Keyword:  strings.TrimSpace(req.Keyword),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	list := make([]dto.StoreInfo, 0, len(stores))
	for i := range stores {
		list = append(list, *toStoreInfo(&stores[i]))
	}
	return &dto.StoreListResponse{List: list, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

func (s *StoreService) Get(ctx context.Context, userID, storeID int64) (*dto.StoreInfo, error) {
	store, err := s.GetOwned(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}
	return toStoreInfo(store), nil
}

// GetOwned 按调用者租户查询店铺，其他租户的店铺一律视为不存在
func (s *StoreService) GetOwned(ctx context.Context, userID, storeID int64) (*model.Store, error) {
	tenantID, err := s.tenants.ResolveTenantID(ctx, userID)
	if errors.Is(err, ErrNoTenant) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}

	store, err := s.storeRepo.GetByTenantAndID(ctx, tenantID, storeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	return store, err
}

func (s *StoreService) Update(ctx context.Context, userID, storeID int64, req *dto.UpdateStoreRequest) (*dto.StoreInfo, error) {
	store, err := s.GetOwned(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		store.Name = strings.TrimSpace(*req.Name)
	}
	if req.AccessToken != nil && *req.AccessToken != store.AccessToken {
		if s.verifier != nil {
			if _, err := s.verifier.VerifyShop(ctx, store.Domain, *req.AccessToken); err != nil {
				return nil, ErrStoreVerifyFailed.Wrap(err)
			}
		}
		store.AccessToken = *req.AccessToken
	}

	if err := s.storeRepo.Update(ctx, store); err != nil {
		return nil, fmt.Errorf("更新店铺失败: %w", err)
	}
	return toStoreInfo(store), nil
}

// Delete 删除店铺及其镜像数据
func (s *StoreService) Delete(ctx context.Context, userID, storeID int64) error {
	store, err := s.GetOwned(ctx, userID, storeID)
	if err != nil {
		return err
	}
	if err := s.storeRepo.Delete(ctx, store.ID); err != nil {
		return fmt.Errorf("删除店铺失败: %w", err)
	}
	s.logger.Info("store deleted", zap.Int64("store_id", store.ID), zap.String("domain", store.Domain))
	return nil
}

// ==================== 开发环境预置 ====================

// AutoProvision 创建开发租户并注册尚不存在的店铺，返回新建数量
func (s *StoreService) AutoProvision(ctx context.Context, devStores []config.DevStore) (int, error) {
	if len(devStores) == 0 {
		return 0, nil
	}

	tenant, err := s.tenantRepo.GetByName(ctx, devTenantName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant = &model.Tenant{Name: devTenantName}
		if err := s.tenantRepo.Create(ctx, tenant); err != nil {
			return 0, fmt.Errorf("创建开发租户失败: %w", err)
		}
	} else if err != nil {
		return 0, err
	}

	created := 0
	for _, ds := range devStores {
		domain, err := shopify.NormalizeDomain(ds.Domain)
		if err != nil {
			s.logger.Warn("skip dev store with invalid domain", zap.String("domain", ds.Domain))
			continue
		}
		if _, err := s.storeRepo.GetByDomain(ctx, domain); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		store := &model.Store{TenantID: tenant.ID, Name: domain, Domain: domain, AccessToken: ds.Token}
		if err := s.storeRepo.Create(ctx, store); err != nil {
			return created, fmt.Errorf("创建开发店铺 %s 失败: %w", domain, err)
		}
		created++
		s.logger.Info("dev store provisioned", zap.Int64("store_id", store.ID), zap.String("domain", domain))
	}
	return created, nil
}

func toStoreInfo(st *model.Store) *dto.StoreInfo {
	return &dto.StoreInfo{
		ID:           st.ID,
		TenantID:     st.TenantID,
		Name:         st.Name,
		Domain:       st.Domain,
		Currency:     st.Currency,
		LastSyncedAt: st.LastSyncedAt,
		CreatedAt:    st.CreatedAt,
	}
}

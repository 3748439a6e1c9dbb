package shopify

import (
	"context"
	"fmt"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// ShopInfo 接入店铺时校验得到的店铺信息
type ShopInfo struct {
	Name     string
	Domain   string
	Currency string
	Email    string
}

// Verifier 用 go-shopify 调用 shop.json 校验凭证
type Verifier struct {
	app        goshopify.App
	apiVersion string
}

func NewVerifier(apiKey, apiSecret, apiVersion string) *Verifier {
	return &Verifier{
		app:        goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret},
		apiVersion: apiVersion,
	}
}

func (v *Verifier) VerifyShop(ctx context.Context, domain, accessToken string) (*ShopInfo, error) {
	opts := []goshopify.Option{}
	if v.apiVersion != "" {
		opts = append(opts, goshopify.WithVersion(v.apiVersion))
	}

	client, err := goshopify.NewClient(v.app, domain, accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 shopify 客户端失败: %w", err)
	}

	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("校验店铺凭证失败: %w", err)
	}

	return &ShopInfo{
		Name:     shop.Name,
		Domain:   shop.Domain,
		Currency: shop.Currency,
		Email:    shop.Email,
	}, nil
}

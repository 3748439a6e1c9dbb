package model

// Tenant 租户，数据隔离边界
type Tenant struct {
	BaseModel
	Name string `gorm:"size:128;not null" json:"name"`

	Stores []Store `gorm:"foreignKey:TenantID" json:"stores,omitempty"`
}

func (Tenant) TableName() string { return "tenants" }

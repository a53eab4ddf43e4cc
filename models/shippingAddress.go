package models

import (
	"context"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
)

type ShippingAddress struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserId     int       `gorm:"index;not null" json:"user_id"`
	Label      string    `gorm:"size:50" json:"label"`
	Recipient  string    `gorm:"size:100;not null" json:"recipient"`
	Phone      string    `gorm:"size:30" json:"phone"`
	Line1      string    `gorm:"size:255;not null" json:"line1"`
	Line2      string    `gorm:"size:255" json:"line2"`
	City       string    `gorm:"size:100;not null" json:"city"`
	Region     string    `gorm:"size:100" json:"region"`
	PostalCode string    `gorm:"size:20" json:"postal_code"`
	Country    string    `gorm:"size:2;default:'US'" json:"country"`
	IsDefault  *bool     `gorm:"default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShippingAddress struct {
	Label      string `json:"label"`
	Recipient  string `json:"recipient" binding:"required"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  *bool  `json:"is_default"`
}

func CreateShippingAddress(ctx context.Context, input *NewShippingAddress, userId int) (*ShippingAddress, error) {
	if err := utils.ValidateResourceId[User](ctx, userId); err != nil {
		return nil, utils.NewNotFoundError("user not found")
	}

	country := input.Country
	if country == "" {
		country = "US"
	}
	isDefault := input.IsDefault
	if isDefault == nil {
		isDefault = utils.NewFalse()
	}

	db := config.GetDB()
	address := &ShippingAddress{
		UserId:     userId,
		Label:      input.Label,
		Recipient:  input.Recipient,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		Region:     input.Region,
		PostalCode: input.PostalCode,
		Country:    country,
		IsDefault:  isDefault,
	}

	tx := db.WithContext(ctx).Begin()
	if *isDefault {
		err := tx.Model(&ShippingAddress{}).Where("user_id = ?", userId).
			Update("is_default", false).Error
		if err != nil {
			tx.Rollback()
			return nil, utils.NewInternalError("failed to clear default address", err)
		}
	}
	if err := tx.Create(address).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewInternalError("failed to create shipping address", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit shipping address", err)
	}
	return address, nil
}

func GetShippingAddressesForUser(ctx context.Context, userId int) ([]*ShippingAddress, error) {
	db := config.GetDB()
	var addresses []*ShippingAddress
	err := db.WithContext(ctx).Where("user_id = ?", userId).
		Order("is_default DESC, id ASC").Find(&addresses).Error
	if err != nil {
		return nil, utils.NewInternalError("failed to load shipping addresses", err)
	}
	return addresses, nil
}

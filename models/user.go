package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name       string    `gorm:"size:100" json:"name"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	IsAdmin    bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) GetBusinessId() string {
	return u.BusinessId
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser hashes the password before storing. Used by cmd/seed-admin.
func CreateUser(ctx context.Context, businessId, username, name, password string, isAdmin bool) (*User, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		BusinessId: businessId,
		Username:   username,
		Name:       name,
		Password:   string(hashed),
		IsAdmin:    isAdmin,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

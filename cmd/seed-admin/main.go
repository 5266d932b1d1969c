// seed-admin creates or updates the admin console user.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin -business <business-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"gorm.io/gorm"
)

func main() {
	businessId := flag.String("business", "", "business id the admin belongs to (required)")
	username := flag.String("username", "supplementsAdmin", "admin username")
	name := flag.String("name", "Supplements Admin", "display name")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *businessId == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-admin -business <id> -password <pw> [-username u] [-name n]")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var existing models.User
	err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", *username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		if _, err := models.CreateUser(ctx, *businessId, *username, *name, *password, true); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", *username)
		return
	}

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", *username).Updates(map[string]any{
		"password":    string(hashed),
		"name":        *name,
		"business_id": *businessId,
		"is_admin":    true,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	// Drop the cached copy so the next request sees the new password/flags.
	_ = config.RemoveRedisKey("User:" + *username)
	fmt.Printf("Updated admin user: username=%q\n", *username)
}

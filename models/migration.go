package models

import (
	"log"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Claim{},
		&ScopeDocument{}, &ScopeLineItem{},
		&PhotoAnalysis{},
		&DeltaItem{},
		&ClaimActivity{}, &ActivityOutbox{},
		&Document{},
		&IdempotencyKey{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

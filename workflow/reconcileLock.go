package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireClaimReconcileLock serializes delta reconciliation per claim across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the merge transaction.
func AcquireClaimReconcileLock(tx *gorm.DB, businessId string, claimId int) error {
	lockName := fmt.Sprintf("reconcile:%s:%d", businessId, claimId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire reconcile lock for business_id=%s claim_id=%d", businessId, claimId)
	}
	return nil
}

func ReleaseClaimReconcileLock(tx *gorm.DB, businessId string, claimId int) {
	lockName := fmt.Sprintf("reconcile:%s:%d", businessId, claimId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

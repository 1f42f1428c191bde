package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/mohamedelshamy95/CocoERP-sub000/utils"
	"gorm.io/gorm"
)

const postingLockWaitSeconds = 30

// LedgerDocName scopes the posting lock: one ledger, one document.
const LedgerDocName = "inventory-ledger"

// AcquireLedgerPostingLock serializes ledger mutations across instances using
// MySQL advisory locks with a bounded wait.
// NOTE: GET_LOCK/RELEASE_LOCK are session-scoped, not transaction-scoped.
// Acquire and release on a pinned connection (gorm Connection) OUTSIDE the
// posting transaction: a release issued on a committed transaction never
// reaches the server, and the pooled connection would go back holding the
// lock.
// Non-MySQL dialects (embedded sqlite, tests) fall back to an in-process lock
// with the same bounded wait.
func AcquireLedgerPostingLock(tx *gorm.DB, docName string) error {
	lockName := fmt.Sprintf("posting:%s", docName)
	if tx.Dialector.Name() != "mysql" {
		return acquireLocalLock(lockName, postingLockWaitSeconds*time.Second)
	}
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", lockName, postingLockWaitSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: %s", utils.ErrLockNotObtained, lockName)
	}
	return nil
}

func ReleaseLedgerPostingLock(tx *gorm.DB, docName string) {
	lockName := fmt.Sprintf("posting:%s", docName)
	if tx.Dialector.Name() != "mysql" {
		releaseLocalLock(lockName)
		return
	}
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

var (
	localLocksMu sync.Mutex
	localLocks   = map[string]chan struct{}{}
)

func localLock(name string) chan struct{} {
	localLocksMu.Lock()
	defer localLocksMu.Unlock()
	ch, ok := localLocks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		localLocks[name] = ch
	}
	return ch
}

func acquireLocalLock(name string, wait time.Duration) error {
	select {
	case localLock(name) <- struct{}{}:
		return nil
	case <-time.After(wait):
		return fmt.Errorf("%w: %s", utils.ErrLockNotObtained, name)
	}
}

func releaseLocalLock(name string) {
	select {
	case <-localLock(name):
	default:
	}
}

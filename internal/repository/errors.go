// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"errors"
	"fmt"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// storageError は下位層のエラーをErrStorageUnavailableでラップする。
// ドメインエラーはそのまま返す。
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrStorageUnavailable,
		domain.ErrAlreadySigned,
		domain.ErrSessionConflict,
		domain.ErrDocumentAlreadyExists,
		domain.ErrDocumentNotFound,
		domain.ErrReferenceNumberInUse,
		domain.ErrSignerAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

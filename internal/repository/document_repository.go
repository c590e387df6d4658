package repository

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// DocumentModel はdocumentsテーブルのモデル。
type DocumentModel struct {
	ID                string     `gorm:"column:id;type:varchar(64);primaryKey"`
	DocumentType      string     `gorm:"type:varchar(32);not null"`
	OrgUnit           string     `gorm:"type:varchar(32);not null"`
	ReferenceNumber   *string    `gorm:"type:varchar(128);uniqueIndex:uk_documents_reference_number"`
	ContentDigest     string     `gorm:"type:char(64);not null"`
	Content           []byte     `gorm:"type:mediumblob"`
	State             string     `gorm:"type:varchar(32);not null;index:idx_documents_state"`
	Roles             []string   `gorm:"type:varchar(1024);not null;serializer:json"`
	NextIndex         int        `gorm:"not null"`
	FailureReason     string     `gorm:"type:varchar(1024)"`
	VerificationCount int64      `gorm:"not null"`
	Version           int64      `gorm:"not null"`
	CreatedAt         time.Time  `gorm:"type:datetime(6);not null"`
	UpdatedAt         time.Time  `gorm:"type:datetime(6);not null"`
	CompletedAt       *time.Time `gorm:"type:datetime(6)"`
}

// TableName はテーブル名を返す。
func (DocumentModel) TableName() string {
	return "documents"
}

// SignatureRecordModel はsignature_recordsテーブルのモデル。
type SignatureRecordModel struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	DocumentID string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_signature_records_document_role"`
	Role       string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_signature_records_document_role"`
	SequenceNo int       `gorm:"not null"`
	Signer     string    `gorm:"type:varchar(255);not null"`
	KeyID      string    `gorm:"type:char(36);not null"`
	Algorithm  string    `gorm:"type:varchar(16);not null"`
	Signature  []byte    `gorm:"type:blob;not null"`
	Digest     string    `gorm:"type:char(64);not null"`
	SignedAt   time.Time `gorm:"type:datetime(6);not null"`
}

// TableName はテーブル名を返す。
func (SignatureRecordModel) TableName() string {
	return "signature_records"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (s *SignatureRecordModel) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (s *SignatureRecordModel) toDomain() domain.SignatureRecord {
	return domain.SignatureRecord{
		DocumentID: s.DocumentID,
		Role:       s.Role,
		Signer:     s.Signer,
		KeyID:      s.KeyID,
		Algorithm:  s.Algorithm,
		Signature:  s.Signature,
		Digest:     s.Digest,
		SignedAt:   s.SignedAt.UTC(),
	}
}

func (m *DocumentModel) toDomain(sigs []SignatureRecordModel) *domain.DocumentRecord {
	d := &domain.DocumentRecord{
		ID:            m.ID,
		DocumentType:  m.DocumentType,
		OrgUnit:       m.OrgUnit,
		ContentDigest: m.ContentDigest,
		Content:       m.Content,
		Session: domain.SigningSession{
			State:         domain.SessionState(m.State),
			Roles:         m.Roles,
			NextIndex:     m.NextIndex,
			FailureReason: m.FailureReason,
		},
		VerificationCount: m.VerificationCount,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
	if m.ReferenceNumber != nil {
		d.ReferenceNumber = *m.ReferenceNumber
	}
	if m.CompletedAt != nil {
		at := m.CompletedAt.UTC()
		d.CompletedAt = &at
	}
	d.Signatures = make([]domain.SignatureRecord, len(sigs))
	for i := range sigs {
		d.Signatures[i] = sigs[i].toDomain()
	}
	return d
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DocumentRepository は文書と署名レコードのデータアクセスを提供する。
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository は新しいDocumentRepositoryを生成する。
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create は新しい文書を保存する。同じIDが存在すればErrDocumentAlreadyExists。
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.DocumentRecord) error {
	model := &DocumentModel{
		ID:              doc.ID,
		DocumentType:    doc.DocumentType,
		OrgUnit:         doc.OrgUnit,
		ReferenceNumber: nullableString(doc.ReferenceNumber),
		ContentDigest:   doc.ContentDigest,
		Content:         doc.Content,
		State:           string(doc.Session.State),
		Roles:           doc.Session.Roles,
		NextIndex:       doc.Session.NextIndex,
		FailureReason:   doc.Session.FailureReason,
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		CompletedAt:     doc.CompletedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDocumentAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create document",
			"operation", "create",
			"document_id", doc.ID,
			"error", err,
		)
		return storageError(err)
	}
	return nil
}

// FindByID は文書と署名レコードを取得する。存在しなければ nil, nil を返す。
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	var model DocumentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find document",
			"operation", "find_by_id",
			"document_id", id,
			"error", err,
		)
		return nil, storageError(err)
	}

	var sigs []SignatureRecordModel
	err = r.db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("sequence_no ASC").
		Find(&sigs).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find signature records",
			"operation", "find_by_id",
			"document_id", id,
			"error", err,
		)
		return nil, storageError(err)
	}

	return model.toDomain(sigs), nil
}

// SaveTransition は文書のセッション状態を expectedVersion を条件に更新する。
// appended が指定されていれば同一トランザクションで署名レコードを追記する。
// 他の更新に先を越された場合は ErrSessionConflict、同じロールの署名が既にあれば ErrAlreadySigned。
func (r *DocumentRepository) SaveTransition(ctx context.Context, doc *domain.DocumentRecord, expectedVersion int64, appended *domain.SignatureRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appended != nil {
			sig := &SignatureRecordModel{
				DocumentID: doc.ID,
				Role:       appended.Role,
				SequenceNo: slices.Index(doc.Session.Roles, appended.Role),
				Signer:     appended.Signer,
				KeyID:      appended.KeyID,
				Algorithm:  appended.Algorithm,
				Signature:  appended.Signature,
				Digest:     appended.Digest,
				SignedAt:   appended.SignedAt,
			}
			if err := tx.Create(sig).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrAlreadySigned
				}
				return err
			}
		}

		res := tx.Model(&DocumentModel{}).
			Where("id = ? AND version = ?", doc.ID, expectedVersion).
			Updates(map[string]interface{}{
				"reference_number": nullableString(doc.ReferenceNumber),
				"state":            string(doc.Session.State),
				"next_index":       doc.Session.NextIndex,
				"failure_reason":   doc.Session.FailureReason,
				"completed_at":     doc.CompletedAt,
				"updated_at":       doc.UpdatedAt,
				"version":          gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return domain.ErrReferenceNumberInUse
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrSessionConflict
		}
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			slog.ErrorContext(ctx, "failed to save document transition",
				"operation", "save_transition",
				"document_id", doc.ID,
				"state", doc.Session.State,
				"error", err,
			)
		}
		return storageError(err)
	}

	doc.Version = expectedVersion + 1
	return nil
}

// IncrementVerificationCount は完了済み文書の検証回数を原子的に1増やし、増加後の値を返す。
// 完了済み文書が存在しなければ ErrDocumentNotFound。
func (r *DocumentRepository) IncrementVerificationCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DocumentModel{}).
			Where("id = ? AND state = ?", id, string(domain.SessionStateCompleted)).
			UpdateColumn("verification_count", gorm.Expr("verification_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrDocumentNotFound
		}
		return tx.Model(&DocumentModel{}).
			Select("verification_count").
			Where("id = ?", id).
			Scan(&count).Error
	})
	if err != nil {
		if !isDomainError(err) {
			slog.ErrorContext(ctx, "failed to increment verification count",
				"operation", "increment_verification_count",
				"document_id", id,
				"error", err,
			)
		}
		return 0, storageError(err)
	}
	return count, nil
}

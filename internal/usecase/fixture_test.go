package usecase

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/repository"
	"github.com/devnolife/sakti-dashboard-sub012/internal/testutil"
)

var testRoles = []string{"KAPRODI", "DEKAN", "REKTOR"}

// testTimeout は単一接続のSQLiteで並行テストが待たされても切れない長さにする。
const testTimeout = 10 * time.Second

// testEnv はSQLite上の実リポジトリで組み立てたサービス一式。
type testEnv struct {
	db           *gorm.DB
	docs         *repository.DocumentRepository
	catalog      *repository.CatalogRepository
	kms          *mockKMSClient
	authority    *SignatureAuthority
	keys         *KeyService
	codec        *TokenCodec
	numbers      *RefNumberService
	signing      *SigningService
	verification *VerificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	db := testutil.NewTestDB(t)
	env := &testEnv{
		db:      db,
		docs:    repository.NewDocumentRepository(db),
		catalog: repository.NewCatalogRepository(db),
		kms:     &mockKMSClient{},
	}
	env.authority = NewSignatureAuthority(repository.NewSignerRepository(db), env.kms)
	env.keys = NewKeyService(repository.NewKeyRepository(db), env.kms)
	env.codec = NewTokenCodec(env.keys)
	env.numbers = NewRefNumberService(repository.NewCounterRepository(db), env.catalog, testTimeout)
	env.signing = NewSigningService(env.docs, env.catalog, env.numbers, env.authority, env.codec, testTimeout, testTimeout)
	env.verification = NewVerificationService(env.docs, env.codec, env.authority, testTimeout)

	if err := env.catalog.UpsertDocumentType(ctx, &domain.DocumentType{
		Code:          "SK",
		Name:          "Surat Keputusan",
		RequiredRoles: testRoles,
	}); err != nil {
		t.Fatalf("UpsertDocumentType failed: %v", err)
	}
	if err := env.catalog.UpsertOrgUnit(ctx, &domain.OrgUnit{Code: "55202", Name: "Informatika"}); err != nil {
		t.Fatalf("UpsertOrgUnit failed: %v", err)
	}
	for _, role := range testRoles {
		if _, err := env.authority.RegisterSigner(ctx, role); err != nil {
			t.Fatalf("RegisterSigner(%s) failed: %v", role, err)
		}
	}
	if _, err := env.keys.CreateKey(ctx); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	return env
}

// initiate は既定の署名要件で文書を登録する。
func (e *testEnv) initiate(t *testing.T, id string) *domain.DocumentRecord {
	t.Helper()

	doc, err := e.signing.Initiate(context.Background(), InitiateRequest{
		DocumentID:   id,
		DocumentType: "SK",
		OrgUnit:      "55202",
		Date:         time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		Content:      []byte(`{"nim": "105841100119", "perihal": "Pengangkatan Dosen Pembimbing"}`),
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	return doc
}

// signAll は全ロールで順に署名し、最後の署名で発行されたトークンを返す。
func (e *testEnv) signAll(t *testing.T, id string) string {
	t.Helper()

	var token string
	for _, role := range testRoles {
		res, err := e.signing.Sign(context.Background(), SignRequest{
			DocumentID: id,
			Role:       role,
			Signer:     signerOf(role),
		})
		if err != nil {
			t.Fatalf("Sign(%s) failed: %v", role, err)
		}
		token = res.Token
	}
	if token == "" {
		t.Fatal("expected verification token on completion")
	}
	return token
}

func signerOf(role string) string {
	return role + "@unismuh.ac.id"
}

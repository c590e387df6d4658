package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
	"github.com/devnolife/sakti-dashboard-sub012/internal/testutil"
)

var testDigest = strings.Repeat("ab", 32)

func newTestDocument(t *testing.T, id string, roles ...string) *domain.DocumentRecord {
	t.Helper()

	doc, err := domain.NewDocumentRecord(id, "SK", "55202", testDigest, nil, roles)
	if err != nil {
		t.Fatalf("NewDocumentRecord failed: %v", err)
	}
	return doc
}

func testSignature(doc *domain.DocumentRecord, role string) domain.SignatureRecord {
	return domain.SignatureRecord{
		DocumentID: doc.ID,
		Role:       role,
		Signer:     role + "@example.ac.id",
		KeyID:      "00000000-0000-0000-0000-000000000001",
		Algorithm:  domain.SignatureAlgorithmEd25519,
		Signature:  []byte("sig-" + role),
		Digest:     doc.ContentDigest,
		SignedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// attachAndSave は参照番号を付与して保存する。
func attachAndSave(t *testing.T, repo *DocumentRepository, doc *domain.DocumentRecord, ref string) {
	t.Helper()

	expected := doc.Version
	if err := doc.AttachReferenceNumber(ref); err != nil {
		t.Fatalf("AttachReferenceNumber failed: %v", err)
	}
	if err := repo.SaveTransition(context.Background(), doc, expected, nil); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
}

func TestDocumentRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(testutil.NewTestDB(t))

	doc := newTestDocument(t, "doc-1", "KAPRODI", "DEKAN")
	doc.Content = []byte(`{"nim":"105841100119"}`)
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected document, got nil")
	}
	if got.Session.State != domain.SessionStateGenerating {
		t.Errorf("expected generating, got %s", got.Session.State)
	}
	if len(got.Session.Roles) != 2 || got.Session.Roles[0] != "KAPRODI" || got.Session.Roles[1] != "DEKAN" {
		t.Errorf("unexpected roles %v", got.Session.Roles)
	}
	if got.ReferenceNumber != "" {
		t.Errorf("expected empty reference number, got %q", got.ReferenceNumber)
	}
	if string(got.Content) != `{"nim":"105841100119"}` {
		t.Errorf("unexpected content %q", got.Content)
	}

	// 重複ID
	if err := repo.Create(ctx, newTestDocument(t, "doc-1", "DEKAN")); !errors.Is(err, domain.ErrDocumentAlreadyExists) {
		t.Errorf("expected ErrDocumentAlreadyExists, got %v", err)
	}

	// 存在しない
	got, err = repo.FindByID(ctx, "missing")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDocumentRepository_SaveTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(testutil.NewTestDB(t))

	doc := newTestDocument(t, "doc-1", "KAPRODI", "DEKAN")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	attachAndSave(t, repo, doc, "1/SK/55202/III/1445/2024")

	for _, role := range []string{"KAPRODI", "DEKAN"} {
		expected := doc.Version
		sig := testSignature(doc, role)
		if _, err := doc.AppendSignature(sig); err != nil {
			t.Fatalf("AppendSignature(%s) failed: %v", role, err)
		}
		if err := repo.SaveTransition(ctx, doc, expected, &sig); err != nil {
			t.Fatalf("SaveTransition(%s) failed: %v", role, err)
		}
	}

	got, err := repo.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Session.State != domain.SessionStateCompleted {
		t.Errorf("expected completed, got %s", got.Session.State)
	}
	if got.ReferenceNumber != "1/SK/55202/III/1445/2024" {
		t.Errorf("unexpected reference number %q", got.ReferenceNumber)
	}
	if got.Version != 3 {
		t.Errorf("expected version=3, got %d", got.Version)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
	if len(got.Signatures) != 2 || got.Signatures[0].Role != "KAPRODI" || got.Signatures[1].Role != "DEKAN" {
		t.Fatalf("unexpected signatures %+v", got.Signatures)
	}
	want := doc.Signatures[1]
	if !got.Signatures[1].SignedAt.Equal(want.SignedAt) {
		t.Errorf("signed_at: expected %v, got %v", want.SignedAt, got.Signatures[1].SignedAt)
	}
	if string(got.Signatures[1].Signature) != "sig-DEKAN" {
		t.Errorf("unexpected signature bytes %q", got.Signatures[1].Signature)
	}
}

func TestDocumentRepository_SaveTransition_StaleVersion(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewDocumentRepository(db)

	doc := newTestDocument(t, "doc-1", "KAPRODI", "DEKAN")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	attachAndSave(t, repo, doc, "1/SK/55202/III/1445/2024")

	stale := doc.Version - 1
	sig := testSignature(doc, "KAPRODI")
	if _, err := doc.AppendSignature(sig); err != nil {
		t.Fatalf("AppendSignature failed: %v", err)
	}
	if err := repo.SaveTransition(ctx, doc, stale, &sig); !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}

	// 署名レコードもロールバックされる
	var count int64
	if err := db.Model(&SignatureRecordModel{}).Where("document_id = ?", "doc-1").Count(&count).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 signature records, got %d", count)
	}
}

func TestDocumentRepository_SaveTransition_DuplicateRole(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(testutil.NewTestDB(t))

	doc := newTestDocument(t, "doc-1", "KAPRODI", "DEKAN")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	attachAndSave(t, repo, doc, "1/SK/55202/III/1445/2024")

	snapshot, err := repo.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	expected := doc.Version
	sig := testSignature(doc, "KAPRODI")
	if _, err := doc.AppendSignature(sig); err != nil {
		t.Fatalf("AppendSignature failed: %v", err)
	}
	if err := repo.SaveTransition(ctx, doc, expected, &sig); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}

	// 古いスナップショットから同じロールを再度追記する
	again := testSignature(snapshot, "KAPRODI")
	if _, err := snapshot.AppendSignature(again); err != nil {
		t.Fatalf("AppendSignature failed: %v", err)
	}
	if err := repo.SaveTransition(ctx, snapshot, expected, &again); !errors.Is(err, domain.ErrAlreadySigned) {
		t.Errorf("expected ErrAlreadySigned, got %v", err)
	}
}

func TestDocumentRepository_ReferenceNumberInUse(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(testutil.NewTestDB(t))

	first := newTestDocument(t, "doc-1", "DEKAN")
	second := newTestDocument(t, "doc-2", "DEKAN")
	for _, d := range []*domain.DocumentRecord{first, second} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	attachAndSave(t, repo, first, "1/SK/55202/III/1445/2024")

	expected := second.Version
	if err := second.AttachReferenceNumber("1/SK/55202/III/1445/2024"); err != nil {
		t.Fatalf("AttachReferenceNumber failed: %v", err)
	}
	if err := repo.SaveTransition(ctx, second, expected, nil); !errors.Is(err, domain.ErrReferenceNumberInUse) {
		t.Errorf("expected ErrReferenceNumberInUse, got %v", err)
	}
}

func TestDocumentRepository_IncrementVerificationCount(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(testutil.NewTestDB(t))

	doc := newTestDocument(t, "doc-1", "DEKAN")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 未完了の文書は対象外
	if _, err := repo.IncrementVerificationCount(ctx, "doc-1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}

	attachAndSave(t, repo, doc, "1/SK/55202/III/1445/2024")
	expected := doc.Version
	sig := testSignature(doc, "DEKAN")
	if _, err := doc.AppendSignature(sig); err != nil {
		t.Fatalf("AppendSignature failed: %v", err)
	}
	if err := repo.SaveTransition(ctx, doc, expected, &sig); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementVerificationCount(ctx, "doc-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementVerificationCount failed: %v", err)
	}

	got, err := repo.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.VerificationCount != n {
		t.Errorf("expected verification_count=%d, got %d", n, got.VerificationCount)
	}
	// 検証回数の更新は楽観ロックのバージョンを進めない
	if got.Version != doc.Version {
		t.Errorf("expected version=%d, got %d", doc.Version, got.Version)
	}

	if _, err := repo.IncrementVerificationCount(ctx, "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

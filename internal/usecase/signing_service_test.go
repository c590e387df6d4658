package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// stubAuthority は Sign だけを差し替えた署名機関。
type stubAuthority struct {
	SigningAuthority
	signErr error
}

func (s *stubAuthority) Sign(ctx context.Context, in SignInput) (*domain.SignatureRecord, error) {
	if s.signErr != nil {
		return nil, s.signErr
	}
	return s.SigningAuthority.Sign(ctx, in)
}

func TestSigningService_Initiate(t *testing.T) {
	env := newTestEnv(t)

	doc := env.initiate(t, "doc-1")

	if doc.ReferenceNumber != "1/SK/55202/III/1445/2024" {
		t.Errorf("unexpected reference number %s", doc.ReferenceNumber)
	}
	if doc.Session.State != domain.SessionStateAwaitingSignature {
		t.Errorf("want awaiting_signature, got %s", doc.Session.State)
	}
	if next, _ := doc.Session.NextRole(); next != "KAPRODI" {
		t.Errorf("want next role KAPRODI, got %s", next)
	}
	// 内容は正規化して保存される
	if got := string(doc.Content); got != `{"nim":"105841100119","perihal":"Pengangkatan Dosen Pembimbing"}` {
		t.Errorf("unexpected canonical content %s", got)
	}
	if DigestOf(doc.Content) != doc.ContentDigest {
		t.Error("digest does not match canonical content")
	}

	stored, err := env.docs.FindByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored.ReferenceNumber != doc.ReferenceNumber || stored.Version != doc.Version {
		t.Errorf("stored record differs: %+v", stored)
	}
}

func TestSigningService_Initiate_GeneratesID(t *testing.T) {
	env := newTestEnv(t)

	doc, err := env.signing.Initiate(context.Background(), InitiateRequest{
		DocumentType:  "SK",
		OrgUnit:       "55202",
		ContentDigest: strings.Repeat("0f", 32),
		Roles:         []string{"DEKAN"},
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if len(doc.ID) != 36 {
		t.Errorf("expected generated uuid, got %q", doc.ID)
	}
	if len(doc.Session.Roles) != 1 || doc.Session.Roles[0] != "DEKAN" {
		t.Errorf("unexpected roles %v", doc.Session.Roles)
	}
	if doc.Content != nil {
		t.Error("expected no stored content")
	}
}

func TestSigningService_Initiate_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-existing")

	content := []byte(`{"a":1}`)
	tests := []struct {
		name    string
		req     InitiateRequest
		wantErr error
	}{
		{
			name:    "unknown document type",
			req:     InitiateRequest{DocumentType: "SPT", OrgUnit: "55202", Content: content},
			wantErr: domain.ErrUnknownScope,
		},
		{
			name:    "unknown org unit",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "11111", Content: content},
			wantErr: domain.ErrUnknownScope,
		},
		{
			name:    "unregistered signer role",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202", Content: content, Roles: []string{"KAPRODI", "WAREK"}},
			wantErr: domain.ErrUnknownSigner,
		},
		{
			name:    "duplicate roles",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202", Content: content, Roles: []string{"DEKAN", "DEKAN"}},
			wantErr: domain.ErrInvalidSigningRequirement,
		},
		{
			name:    "no content",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202"},
			wantErr: domain.ErrInvalidDigest,
		},
		{
			name:    "invalid json content",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202", Content: []byte(`{"a":`)},
			wantErr: domain.ErrInvalidContent,
		},
		{
			name:    "digest does not match content",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202", Content: content, ContentDigest: strings.Repeat("00", 32)},
			wantErr: domain.ErrDigestMismatch,
		},
		{
			name:    "reference number from another scope",
			req:     InitiateRequest{DocumentType: "SK", OrgUnit: "55202", Content: content, ReferenceNumber: "1/SPT/55202/III/1445/2024"},
			wantErr: domain.ErrInvalidReferenceNumber,
		},
		{
			name:    "existing document",
			req:     InitiateRequest{DocumentID: "doc-existing", DocumentType: "SK", OrgUnit: "55202", Content: content},
			wantErr: domain.ErrDocumentAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.signing.Initiate(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSigningService_Initiate_SuppliedReferenceNumber(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// 外部で採番済みの番号を持ち込む
	issued, err := env.numbers.Generate(ctx, GenerateRequest{DocumentType: "SK", OrgUnit: "55202", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := InitiateRequest{
		DocumentType:    "SK",
		OrgUnit:         "55202",
		ReferenceNumber: issued.String(),
		Content:         []byte(`{"a":1}`),
	}
	doc, err := env.signing.Initiate(ctx, req)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if doc.ReferenceNumber != req.ReferenceNumber {
		t.Errorf("want %s, got %s", req.ReferenceNumber, doc.ReferenceNumber)
	}

	// 同じ番号は別の文書に付与できない
	if _, err := env.signing.Initiate(ctx, req); !errors.Is(err, domain.ErrReferenceNumberInUse) {
		t.Errorf("want ErrReferenceNumberInUse, got %v", err)
	}
}

func TestSigningService_Initiate_UnissuedReferenceNumber(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.signing.Initiate(ctx, InitiateRequest{
		DocumentID:      "doc-claimed",
		DocumentType:    "SK",
		OrgUnit:         "55202",
		ReferenceNumber: "1/SK/55202/III/1445/2024",
		Content:         []byte(`{"a":1}`),
	})
	if !errors.Is(err, domain.ErrInvalidReferenceNumber) {
		t.Fatalf("want ErrInvalidReferenceNumber, got %v", err)
	}
	claimed, err := env.docs.FindByID(ctx, "doc-claimed")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if claimed != nil {
		t.Errorf("rejected document must not be stored, got %+v", claimed)
	}

	// 拒否された番号はサーバー側の採番でそのまま払い出せる
	doc := env.initiate(t, "doc-1")
	if doc.ReferenceNumber != "1/SK/55202/III/1445/2024" {
		t.Errorf("unexpected reference number %s", doc.ReferenceNumber)
	}
	if doc.Session.State != domain.SessionStateAwaitingSignature {
		t.Errorf("want awaiting_signature, got %s", doc.Session.State)
	}

	// カウンタより先の番号も拒否する
	_, err = env.signing.Initiate(ctx, InitiateRequest{
		DocumentType:    "SK",
		OrgUnit:         "55202",
		ReferenceNumber: "2/SK/55202/III/1445/2024",
		Content:         []byte(`{"b":2}`),
	})
	if !errors.Is(err, domain.ErrInvalidReferenceNumber) {
		t.Errorf("want ErrInvalidReferenceNumber, got %v", err)
	}
	next := env.initiate(t, "doc-2")
	if next.ReferenceNumber != "2/SK/55202/III/1445/2024" {
		t.Errorf("unexpected reference number %s", next.ReferenceNumber)
	}
}

func TestSigningService_Initiate_ResumesGenerating(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	canonical, digest, err := CanonicalizeContent([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("CanonicalizeContent failed: %v", err)
	}
	// 参照番号の付与前に中断された文書
	pending, err := domain.NewDocumentRecord("doc-resume", "SK", "55202", digest, canonical, testRoles)
	if err != nil {
		t.Fatalf("NewDocumentRecord failed: %v", err)
	}
	if err := env.docs.Create(ctx, pending); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	doc, err := env.signing.Initiate(ctx, InitiateRequest{
		DocumentID:   "doc-resume",
		DocumentType: "SK",
		OrgUnit:      "55202",
		Content:      []byte(`{ "a" : 1 }`),
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if doc.Session.State != domain.SessionStateAwaitingSignature {
		t.Errorf("want awaiting_signature, got %s", doc.Session.State)
	}

	// 内容が異なれば再開しない
	_, err = env.signing.Initiate(ctx, InitiateRequest{
		DocumentID:   "doc-resume",
		DocumentType: "SK",
		OrgUnit:      "55202",
		Content:      []byte(`{"a":2}`),
	})
	if !errors.Is(err, domain.ErrDocumentAlreadyExists) {
		t.Errorf("want ErrDocumentAlreadyExists, got %v", err)
	}
}

func TestSigningService_SignAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	for i, role := range testRoles {
		res, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: role, Signer: signerOf(role)})
		if err != nil {
			t.Fatalf("Sign(%s) failed: %v", role, err)
		}
		last := i == len(testRoles)-1
		if (res.Token != "") != last {
			t.Errorf("Sign(%s): unexpected token %q", role, res.Token)
		}
		if len(res.Document.Signatures) != i+1 {
			t.Errorf("Sign(%s): want %d signatures, got %d", role, i+1, len(res.Document.Signatures))
		}
	}

	status, err := env.signing.Status(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != domain.SessionStateCompleted || status.Pending {
		t.Errorf("unexpected status %+v", status)
	}
	if strings.Join(status.SignedRoles, ",") != strings.Join(testRoles, ",") {
		t.Errorf("unexpected signed roles %v", status.SignedRoles)
	}
	if status.CompletedAt == nil {
		t.Error("expected completed_at")
	}
}

func TestSigningService_Sign_OutOfOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	_, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "REKTOR", Signer: signerOf("REKTOR")})
	if !errors.Is(err, domain.ErrOutOfOrderSignature) {
		t.Fatalf("want ErrOutOfOrderSignature, got %v", err)
	}

	doc, err := env.docs.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if len(doc.Signatures) != 0 {
		t.Errorf("want no stored signatures, got %d", len(doc.Signatures))
	}
	if next, _ := doc.Session.NextRole(); next != "KAPRODI" {
		t.Errorf("want next role KAPRODI, got %s", next)
	}
}

func TestSigningService_Sign_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	if _, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")}); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tests := []struct {
		name    string
		req     SignRequest
		wantErr error
	}{
		{name: "already signed", req: SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: "x"}, wantErr: domain.ErrAlreadySigned},
		{name: "role not required", req: SignRequest{DocumentID: "doc-1", Role: "WAREK", Signer: "x"}, wantErr: domain.ErrRoleNotRequired},
		{name: "missing signer", req: SignRequest{DocumentID: "doc-1", Role: "DEKAN"}, wantErr: domain.ErrInvalidSigningRequirement},
		{name: "unknown document", req: SignRequest{DocumentID: "nope", Role: "DEKAN", Signer: "x"}, wantErr: domain.ErrDocumentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.signing.Sign(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSigningService_Sign_AuthorityFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	env.signing.authority = &stubAuthority{SigningAuthority: env.authority, signErr: errors.New("decrypting private key: permission denied")}

	_, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")})
	if !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("want ErrSigningFailed, got %v", err)
	}

	status, err := env.signing.Status(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != domain.SessionStateFailed || status.Pending {
		t.Errorf("want failed state, got %+v", status)
	}
	if !strings.Contains(status.FailureReason, "permission denied") {
		t.Errorf("unexpected failure reason %q", status.FailureReason)
	}

	// 失敗は終端状態
	env.signing.authority = env.authority
	_, err = env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")})
	if !errors.Is(err, domain.ErrSigningFailed) {
		t.Errorf("want ErrSigningFailed after failure, got %v", err)
	}
}

// failedSaveRepository は失敗状態への遷移だけ保存に失敗する文書リポジトリ。
type failedSaveRepository struct {
	DocumentRepository
	err error
}

func (r *failedSaveRepository) SaveTransition(ctx context.Context, doc *domain.DocumentRecord, expectedVersion int64, appended *domain.SignatureRecord) error {
	if doc.Session.State == domain.SessionStateFailed {
		return r.err
	}
	return r.DocumentRepository.SaveTransition(ctx, doc, expectedVersion, appended)
}

func TestSigningService_Sign_AuthorityFailureNotRecorded(t *testing.T) {
	tests := []struct {
		name    string
		saveErr error
		wantErr error
	}{
		{name: "競合", saveErr: domain.ErrSessionConflict, wantErr: domain.ErrSessionConflict},
		{name: "ストレージ障害", saveErr: context.DeadlineExceeded, wantErr: domain.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			env.initiate(t, "doc-1")

			env.signing.docs = &failedSaveRepository{DocumentRepository: env.docs, err: tt.saveErr}
			env.signing.authority = &stubAuthority{SigningAuthority: env.authority, signErr: errors.New("decrypting private key: permission denied")}

			_, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")})
			if errors.Is(err, domain.ErrSigningFailed) {
				t.Fatalf("unrecorded failure must not be reported as terminal, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			status, err := env.signing.Status(ctx, "doc-1")
			if err != nil {
				t.Fatalf("Status failed: %v", err)
			}
			if status.State != domain.SessionStateAwaitingSignature {
				t.Errorf("want awaiting_signature, got %s", status.State)
			}

			// 保存が回復すれば署名を続けられる
			env.signing.docs = env.docs
			env.signing.authority = env.authority
			if _, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")}); err != nil {
				t.Errorf("Sign after recovery failed: %v", err)
			}
		})
	}
}

func TestSigningService_Sign_AuthorityTimeout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before := env.initiate(t, "doc-1")

	env.signing.authority = &stubAuthority{SigningAuthority: env.authority, signErr: context.DeadlineExceeded}

	_, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}

	after, err := env.docs.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.Version != before.Version || after.Session.State != domain.SessionStateAwaitingSignature {
		t.Errorf("expected no state change, got version %d state %s", after.Version, after.Session.State)
	}

	// 再試行は成功する
	env.signing.authority = env.authority
	if _, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")}); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestSigningService_Sign_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: "KAPRODI", Signer: signerOf("KAPRODI")})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)

	if succeeded != 1 {
		t.Errorf("want exactly 1 successful signature, got %d", succeeded)
	}
	for err := range errs {
		if !errors.Is(err, domain.ErrAlreadySigned) {
			t.Errorf("want ErrAlreadySigned, got %v", err)
		}
	}

	doc, err := env.docs.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if len(doc.Signatures) != 1 {
		t.Errorf("want 1 stored signature, got %d", len(doc.Signatures))
	}
}

func TestSigningService_Status_Pending(t *testing.T) {
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	status, err := env.signing.Status(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Pending || status.NextRole != "KAPRODI" || len(status.SignedRoles) != 0 {
		t.Errorf("unexpected status %+v", status)
	}

	if _, err := env.signing.Status(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("want ErrDocumentNotFound, got %v", err)
	}
}

func TestSigningService_Token(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")

	if _, err := env.signing.Token(ctx, "doc-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("want ErrInvalidTransition before completion, got %v", err)
	}

	env.signAll(t, "doc-1")
	if _, err := env.keys.RotateKey(ctx); err != nil {
		t.Fatalf("RotateKey failed: %v", err)
	}

	token, err := env.signing.Token(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if !strings.HasPrefix(token, "v2.") {
		t.Errorf("expected token minted with generation 2, got %s", token)
	}
	if res := env.verification.Verify(ctx, token); res.Verdict != domain.VerdictValid {
		t.Errorf("want valid, got %s (%s)", res.Verdict, res.Reason)
	}
}

func TestSigningService_TokenMintFailureKeepsCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.initiate(t, "doc-1")
	if err := env.keys.DisableKey(ctx, 1); err != nil {
		t.Fatalf("DisableKey failed: %v", err)
	}

	for _, role := range testRoles {
		res, err := env.signing.Sign(ctx, SignRequest{DocumentID: "doc-1", Role: role, Signer: signerOf(role)})
		if err != nil {
			t.Fatalf("Sign(%s) failed: %v", role, err)
		}
		if res.Token != "" {
			t.Errorf("Sign(%s): expected no token without an active key", role)
		}
	}

	status, err := env.signing.Status(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != domain.SessionStateCompleted {
		t.Errorf("want completed, got %s", status.State)
	}

	if _, err := env.keys.RotateKey(ctx); err != nil {
		t.Fatalf("RotateKey failed: %v", err)
	}
	if _, err := env.signing.Token(ctx, "doc-1"); err != nil {
		t.Errorf("Token after rotation failed: %v", err)
	}
}

func TestSignResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: domain.ErrOutOfOrderSignature, want: "out_of_order"},
		{err: domain.ErrAlreadySigned, want: "already_signed"},
		{err: domain.ErrSigningFailed, want: "failed"},
		{err: domain.ErrStorageUnavailable, want: "unavailable"},
		{err: domain.ErrRoleNotRequired, want: "rejected"},
	}
	for _, tt := range tests {
		if got := signResultLabel(tt.err); got != tt.want {
			t.Errorf("signResultLabel(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

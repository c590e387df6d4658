package domain

import "errors"

var (
	// ErrUnknownScope は文書種別コードまたは組織単位コードが未登録の場合のエラー。
	ErrUnknownScope = errors.New("unknown scope")

	// ErrStorageUnavailable はストレージへのアクセスに失敗した場合のエラー（リトライ可能）。
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnknownSigner は署名者ロールに鍵が登録されていない場合のエラー。
	ErrUnknownSigner = errors.New("unknown signer")

	// ErrOutOfOrderSignature は宣言順以外の署名要求のエラー。
	ErrOutOfOrderSignature = errors.New("out of order signature")

	// ErrAlreadySigned は同じロールが既に署名済みの場合のエラー。
	ErrAlreadySigned = errors.New("already signed")

	// ErrSigningFailed は署名セッションが失敗状態（終端）にある場合のエラー。
	ErrSigningFailed = errors.New("signing failed")

	// ErrTokenInvalid は検証トークンの形式不正・復号失敗のエラー。
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenTampered は復号できたが内容または署名が一致しない場合のエラー。
	ErrTokenTampered = errors.New("token tampered")

	// ErrDocumentNotFound は文書レコードが存在しない場合のエラー。
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentAlreadyExists は同じ文書IDのレコードが既に存在する場合のエラー。
	ErrDocumentAlreadyExists = errors.New("document already exists")

	// ErrRoleNotRequired は署名要件に含まれないロールで署名しようとした場合のエラー。
	ErrRoleNotRequired = errors.New("role is not part of the signing requirement")

	// ErrInvalidSigningRequirement は署名者ロール一覧が空または重複している場合のエラー。
	ErrInvalidSigningRequirement = errors.New("invalid signing requirement")

	// ErrInvalidTransition は現在の状態から許可されない遷移のエラー。
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrSessionConflict は同一文書への並行更新が競合した場合のエラー。
	ErrSessionConflict = errors.New("signing session was modified concurrently")

	// ErrDigestMismatch は署名対象のダイジェストが文書と一致しない場合のエラー。
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrInvalidContent は文書内容が正規化できないJSONの場合のエラー。
	ErrInvalidContent = errors.New("invalid document content")

	// ErrInvalidDigest はダイジェストの形式が不正な場合のエラー。
	ErrInvalidDigest = errors.New("invalid content digest")

	// ErrInvalidCode はコードの形式が不正な場合のエラー。
	ErrInvalidCode = errors.New("invalid code")

	// ErrInvalidReferenceNumber は参照番号の形式が不正な場合のエラー。
	ErrInvalidReferenceNumber = errors.New("invalid reference number")

	// ErrReferenceNumberInUse は参照番号が既に別の文書に付与されている場合のエラー。
	ErrReferenceNumberInUse = errors.New("reference number already in use")

	// ErrSignerAlreadyExists はロールに既に鍵が登録されている場合のエラー。
	ErrSignerAlreadyExists = errors.New("signer already exists")

	// ErrKeyNotFound は指定された世代のトークン鍵が存在しない場合のエラー。
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyAlreadyExists はトークン鍵が既に作成済みの場合のエラー。
	ErrKeyAlreadyExists = errors.New("key already exists")

	// ErrKeyDisabled は指定された鍵が無効化されている場合のエラー。
	ErrKeyDisabled = errors.New("key is disabled")

	// ErrKeyAlreadyDisabled は指定された鍵が既に無効化されている場合のエラー。
	ErrKeyAlreadyDisabled = errors.New("key is already disabled")

	// ErrInvalidGeneration は世代番号が不正な場合のエラー。
	ErrInvalidGeneration = errors.New("invalid generation")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")

	// ErrMigrationChecksumMismatch は適用済みマイグレーションのファイルが変更された場合のエラー。
	ErrMigrationChecksumMismatch = errors.New("migration checksum mismatch")
)

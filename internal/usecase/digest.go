package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/devnolife/sakti-dashboard-sub012/internal/domain"
)

// CanonicalizeContent はJSON文書をRFC 8785 (JCS) で正規化し、正規化結果とそのSHA-256ダイジェストを返す。
// キー順や空白だけが異なる文書は同じダイジェストになる。
func CanonicalizeContent(content []byte) ([]byte, string, error) {
	canonical, err := jcs.Transform(content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidContent, err)
	}
	return canonical, DigestOf(canonical), nil
}

// DigestOf はバイト列のSHA-256を16進で返す。
func DigestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

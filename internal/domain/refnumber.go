// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// codePattern は文書種別・組織単位コードの書式。区切り文字 "/" は使えない。
var codePattern = regexp.MustCompile(`^[A-Za-z0-9.-]{1,32}$`)

var romanMonths = [...]string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}

// ValidateCode はコードの書式を検証する。
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}

// ScopeKey は採番カウンタの区分を表す。
// カウンタは年単位で区切られ、月とヒジュラ年は番号の表示にのみ使われる。
type ScopeKey struct {
	DocumentType string
	OrgUnit      string
	Month        time.Month
	Year         int
	HijriYear    int
}

// NewScopeKey は文書種別・組織単位・日付からScopeKeyを生成する。
func NewScopeKey(documentType, orgUnit string, when time.Time) (ScopeKey, error) {
	if err := ValidateCode(documentType); err != nil {
		return ScopeKey{}, err
	}
	if err := ValidateCode(orgUnit); err != nil {
		return ScopeKey{}, err
	}
	year, month, _ := when.Date()
	return ScopeKey{
		DocumentType: documentType,
		OrgUnit:      orgUnit,
		Month:        month,
		Year:         year,
		HijriYear:    HijriYearOfMonth(year, month),
	}, nil
}

// CounterKey はカウンタの永続化キーを返す（年で区切る）。
func (k ScopeKey) CounterKey() string {
	return fmt.Sprintf("%s/%s/%d", k.DocumentType, k.OrgUnit, k.Year)
}

// ReferenceNumber は採番済みの参照番号を表す。
type ReferenceNumber struct {
	Sequence int64
	Scope    ScopeKey
}

// String は参照番号の書式化された文字列を返す。
func (r ReferenceNumber) String() string {
	return FormatReferenceNumber(r.Scope, r.Sequence)
}

// FormatReferenceNumber は {連番}/{文書種別}/{組織単位}/{ローマ数字の月}/{ヒジュラ年}/{西暦年} を組み立てる。
// 副作用を持たないため、プレビューと採番の両方で使う。
func FormatReferenceNumber(scope ScopeKey, sequence int64) string {
	return fmt.Sprintf("%d/%s/%s/%s/%d/%d",
		sequence,
		scope.DocumentType,
		scope.OrgUnit,
		RomanMonth(scope.Month),
		scope.HijriYear,
		scope.Year,
	)
}

// ParseReferenceNumber は参照番号の文字列を解析する。
// ヒジュラ年が月の1日時点の換算値と一致しない番号は不正として扱う。
func ParseReferenceNumber(s string) (*ReferenceNumber, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReferenceNumber, s)
	}

	seq, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || seq < 1 {
		return nil, fmt.Errorf("%w: sequence %q", ErrInvalidReferenceNumber, parts[0])
	}
	month, err := ParseRomanMonth(parts[3])
	if err != nil {
		return nil, err
	}
	hijriYear, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: hijri year %q", ErrInvalidReferenceNumber, parts[4])
	}
	year, err := strconv.Atoi(parts[5])
	if err != nil || year < 1 {
		return nil, fmt.Errorf("%w: year %q", ErrInvalidReferenceNumber, parts[5])
	}

	scope, err := NewScopeKey(parts[1], parts[2], time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReferenceNumber, err)
	}
	if scope.HijriYear != hijriYear {
		return nil, fmt.Errorf("%w: hijri year %d does not match %s %d", ErrInvalidReferenceNumber, hijriYear, month, year)
	}

	return &ReferenceNumber{Sequence: seq, Scope: scope}, nil
}

// RomanMonth は月をローマ数字（I〜XII）で返す。
func RomanMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return romanMonths[m-1]
}

// ParseRomanMonth はローマ数字の月を解析する。
func ParseRomanMonth(s string) (time.Month, error) {
	for i, r := range romanMonths {
		if r == s {
			return time.Month(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: month %q", ErrInvalidReferenceNumber, s)
}

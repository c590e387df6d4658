package domain

import "time"

// HijriDate はヒジュラ暦（表式太陰暦）の日付を表す。
type HijriDate struct {
	Year  int
	Month int
	Day   int
}

// ToHijri はグレゴリオ暦の日付を表式イスラム暦に変換する。
// 時刻とタイムゾーンは無視し、暦日のみを使う。
func ToHijri(t time.Time) HijriDate {
	y, m, d := t.Date()
	return hijriFromJDN(julianDayNumber(y, int(m), d))
}

// HijriYearOfMonth はグレゴリオ暦の月の1日時点のヒジュラ年を返す。
// 同じ月の中でヒジュラ暦の新年をまたいでも、その月の番号はすべて同じ年になる。
func HijriYearOfMonth(year int, month time.Month) int {
	return hijriFromJDN(julianDayNumber(year, int(month), 1)).Year
}

// julianDayNumber はグレゴリオ暦の日付のユリウス通日を返す。
func julianDayNumber(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// hijriFromJDN は30年周期の表式暦でユリウス通日をヒジュラ暦に変換する。
func hijriFromJDN(jdn int) HijriDate {
	l := jdn - 1948440 + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30
	return HijriDate{Year: year, Month: month, Day: day}
}

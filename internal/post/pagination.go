package post

import (
	"strconv"
	"strings"
)

// 投稿一覧のページネーションの既定値。
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// maxPage はOFFSETの計算がオーバーフローしないためのページ番号の上限。
	maxPage = 1_000_000_000
)

// Pagination は一覧取得の件数上限と既定件数。
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPagination は既定値のPagination。
var DefaultPagination = Pagination{DefaultLimit: DefaultPageLimit, MaxLimit: MaxPageLimit}

// Parse はクエリ文字列のpageとlimitを解釈する。
// 数値でない値は未指定として扱い、範囲外の値はNormalizeで補正する。
func (p Pagination) Parse(pageRaw, limitRaw string) (page, limit int) {
	return p.Normalize(atoiOrZero(pageRaw), atoiOrZero(limitRaw))
}

// Normalize はpageとlimitを有効な範囲に補正する。
// page < 1 は1、limit < 1 は既定件数、上限超過は上限にする。
func (p Pagination) Normalize(page, limit int) (int, int) {
	defaultLimit := p.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = DefaultPageLimit
	}
	maxLimit := p.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}

	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// ParsePagination は既定値でpageとlimitを解釈する。
func ParsePagination(pageRaw, limitRaw string) (page, limit int) {
	return DefaultPagination.Parse(pageRaw, limitRaw)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

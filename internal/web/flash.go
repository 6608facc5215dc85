package web

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
)

// フラッシュメッセージのカテゴリです。テンプレートの CSS クラスにそのまま使います。
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryDanger  = "danger"
	CategoryWarning = "warning"
)

// Flash は次のページ表示で一度だけ出す通知です。
type Flash struct {
	Category string
	Message  string
}

func init() {
	// cookie / redis どちらのストアも gob でセッション値を保存する
	gob.Register(Flash{})
}

func addFlash(session sessions.Session, category, message string) {
	session.AddFlash(Flash{Category: category, Message: message})
}

// popFlashes は溜まっている通知を取り出して消します。保存は呼び出し側で行います。
func popFlashes(session sessions.Session) []Flash {
	raw := session.Flashes()
	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	return flashes
}

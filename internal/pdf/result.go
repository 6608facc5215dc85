// Package pdf はログイン後に配布するPDF成果物の読み込みと配信を提供します。
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

func init() {
	// pdfcpu がユーザー設定ディレクトリを作らないようにする
	pdfapi.DisableConfigDir()
}

// Artifact は配布する固定ファイルの情報です。内容は利用者ごとに変えません。
type Artifact struct {
	Path        string `json:"-"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Pages       int    `json:"pages"`
}

// LoadArtifact はファイルの存在を確認し、MIME タイプを判定します。
func LoadArtifact(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("配布ファイルが見つかりません: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("配布ファイルのパスがディレクトリです: %s", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("配布ファイルの判定に失敗しました: %w", err)
	}

	return &Artifact{
		Path:        path,
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		ContentType: mtype.String(),
	}, nil
}

// IsPDF は内容が PDF と判定されたかを返します。
func (a *Artifact) IsPDF() bool {
	return mimetype.EqualsAny(a.ContentType, "application/pdf")
}

// CountPages は pdfcpu でページ数を数え、Pages に設定します。
func (a *Artifact) CountPages() error {
	if !a.IsPDF() {
		return errors.New("PDFではないためページ数を取得できません")
	}
	pages, err := pdfapi.PageCountFile(a.Path)
	if err != nil {
		return fmt.Errorf("ページ数の取得に失敗しました: %w", err)
	}
	a.Pages = pages
	return nil
}

// Open は配信用にファイルを開き、現在のサイズを返します。
func (a *Artifact) Open() (*os.File, int64, error) {
	file, err := os.Open(a.Path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

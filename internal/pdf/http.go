package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/agent-vault/internal/logging"
)

// DownloadHandler は POST /download のハンドラーを返します。
// 認可はルーティング側のミドルウェアで済ませている前提です。
func DownloadHandler(artifact *Artifact) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := streamArtifact(c, artifact); err != nil {
			logging.FromContext(c.Request.Context()).Error("failed to stream artifact", "path", artifact.Path, "error", err)
			if errors.Is(err, fs.ErrNotExist) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "ARTIFACT_NOT_FOUND",
					"message": "The requested file is not available.",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to read the requested file.",
			})
		}
	}
}

func streamArtifact(c *gin.Context, artifact *Artifact) error {
	file, size, err := artifact.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	encodedName := url.PathEscape(artifact.Filename)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"; filename*=UTF-8''%s", artifact.Filename, encodedName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, artifact.ContentType, file, nil)
	return nil
}

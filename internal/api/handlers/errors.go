package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"gorm.io/gorm"
)

// errorStatus 将服务层错误映射为 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, apkparser.ErrInvalidArchive), errors.Is(err, apkparser.ErrManifestNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

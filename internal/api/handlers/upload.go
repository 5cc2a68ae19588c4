package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// uploadDest 上传文件的创建和回收方式
type uploadDest struct {
	create func() (*os.File, error)
	remove func(path string) error
}

// removeFile 删除文件，不存在时忽略
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// saveUpload 校验表单中的 APK 并写入 dest 创建的文件
// 校验或写入失败时已写出错误响应，返回 ok=false
func saveUpload(c *gin.Context, maxSize int64, dest uploadDest, logger *logrus.Logger) (path string, fileName string, ok bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "获取上传文件失败",
		})
		return "", "", false
	}

	fileName = filepath.Base(file.Filename)
	if !strings.HasSuffix(strings.ToLower(fileName), ".apk") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "只支持 APK 文件格式",
		})
		return "", "", false
	}

	if maxSize > 0 && file.Size > maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("文件大小超过限制 (最大 %dMB)", maxSize/(1024*1024)),
		})
		return "", "", false
	}

	src, err := file.Open()
	if err != nil {
		logger.WithError(err).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "打开上传文件失败",
		})
		return "", "", false
	}
	defer src.Close()

	dst, err := dest.create()
	if err != nil {
		logger.WithError(err).Error("Failed to create destination file")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "创建目标文件失败",
		})
		return "", "", false
	}
	path = dst.Name()

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logger.WithError(err).Error("Failed to copy uploaded file")
		if rmErr := dest.remove(path); rmErr != nil {
			logger.WithError(rmErr).WithField("path", path).Warn("Failed to remove partial upload")
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "文件上传失败",
		})
		return "", "", false
	}

	logger.WithFields(logrus.Fields{
		"file_name": fileName,
		"size":      written,
		"path":      path,
	}).Info("APK file uploaded")
	return path, fileName, true
}

// pagination 解析分页参数
func pagination(c *gin.Context) (page int, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}

	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int64 {
	return (total + int64(pageSize) - 1) / int64(pageSize)
}

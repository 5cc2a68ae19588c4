package apkparser

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize 流式读取的块大小，缓冲区在整个文件中复用
const hashChunkSize = 32 * 1024

// Digests 文件摘要
type Digests struct {
	MD5    string
	SHA1   string
	SHA256 string
	Size   int64
}

// HashFile 一次读取文件同时计算 MD5 / SHA1 / SHA256（小写十六进制）
func HashFile(path string) (*Digests, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer file.Close()

	return HashReader(file)
}

// HashReader 对任意 reader 计算摘要
func HashReader(r io.Reader) (*Digests, error) {
	md5Hash := md5.New()
	sha1Hash := sha1.New()
	sha256Hash := sha256.New()
	multiWriter := io.MultiWriter(md5Hash, sha1Hash, sha256Hash)

	// 只暴露 Read，否则 *os.File 的 WriteTo 会绕过 buf
	buf := make([]byte, hashChunkSize)
	n, err := io.CopyBuffer(multiWriter, struct{ io.Reader }{r}, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to hash content: %w", err)
	}

	return &Digests{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		Size:   n,
	}, nil
}

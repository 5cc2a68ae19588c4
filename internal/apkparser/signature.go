package apkparser

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MissingSignatureSentinel 归档中没有任何签名相关条目时的指纹值
	MissingSignatureSentinel = "missing signature file"
	// UnknownValue 无法确定的展示字段
	UnknownValue = "unknown"

	// SignatureDateLayout 有效期的展示格式 (RFC 2822 兼容)
	SignatureDateLayout = time.RFC1123Z

	defaultCreatedBy      = "Created-By: Unknown"
	syntheticSubject      = "Android application signature"
	syntheticValidMonths  = 60
	placeholderValidHours = 24
)

// SignatureEntries 按优先级排列的签名相关条目
var SignatureEntries = []string{
	"META-INF/CERT.RSA",
	"META-INF/CERT.DSA",
	"META-INF/CERT.EC",
	"META-INF/ANDROID.RSA",
	"META-INF/ANDROIDD.RSA",
	"META-INF/CERT.SF",
	"META-INF/MANIFEST.MF",
}

// SignatureExtractor 从归档中恢复签名信息
type SignatureExtractor struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewSignatureExtractor 创建签名提取器
func NewSignatureExtractor(logger *logrus.Logger) *SignatureExtractor {
	return &SignatureExtractor{
		logger: logger,
		now:    time.Now,
	}
}

// Extract 返回第一个找到的签名条目的签名信息，永不返回 nil
// 找到但无法解析的条目仍然产生结果，不会继续尝试下一个条目
func (e *SignatureExtractor) Extract(archive *Archive) *SignatureInfo {
	for _, entry := range SignatureEntries {
		if !archive.Has(entry) {
			continue
		}

		data, err := archive.ReadEntry(entry)
		if err != nil {
			e.logger.WithError(err).WithField("entry", entry).Warn("Failed to read signature entry")
			continue
		}

		e.logger.WithFields(logrus.Fields{
			"entry": entry,
			"size":  len(data),
		}).Debug("Found signature entry")

		return e.parseEntry(entry, data)
	}

	e.logger.Warn("No signature entry found in APK")
	now := e.now().UTC()
	return &SignatureInfo{
		Issuer:            UnknownValue,
		Subject:           UnknownValue,
		ValidFrom:         now.Format(SignatureDateLayout),
		ValidTo:           now.Add(placeholderValidHours * time.Hour).Format(SignatureDateLayout),
		FingerprintSHA1:   MissingSignatureSentinel,
		FingerprintSHA256: MissingSignatureSentinel,
	}
}

// parseEntry 三层解析
func (e *SignatureExtractor) parseEntry(entry string, data []byte) *SignatureInfo {
	// 1. DER X.509 证书
	cert, err := x509.ParseCertificate(data)
	if err == nil {
		e.logger.WithFields(logrus.Fields{
			"entry":   entry,
			"issuer":  cert.Issuer.String(),
			"subject": cert.Subject.String(),
		}).Info("Parsed signing certificate")

		return &SignatureInfo{
			Issuer:            cert.Issuer.String(),
			Subject:           cert.Subject.String(),
			ValidFrom:         cert.NotBefore.UTC().Format(SignatureDateLayout),
			ValidTo:           cert.NotAfter.UTC().Format(SignatureDateLayout),
			FingerprintSHA1:   CertificateFingerprint(sha1Sum(cert.RawTBSCertificate)),
			FingerprintSHA256: CertificateFingerprint(sha256Sum(cert.RawTBSCertificate)),
		}
	}
	e.logger.WithError(err).WithField("entry", entry).Debug("Entry is not a DER certificate")

	sha1Raw := "SHA1:" + hex.EncodeToString(sha1Sum(data))
	sha256Raw := "SHA256:" + hex.EncodeToString(sha256Sum(data))

	// 2. 签名摘要文件 (.SF / .MF)
	if strings.HasSuffix(entry, ".SF") || strings.HasSuffix(entry, ".MF") {
		return &SignatureInfo{
			Issuer:            createdBy(string(data)),
			Subject:           fmt.Sprintf("Signature info extracted from %s", entry),
			ValidFrom:         UnknownValue,
			ValidTo:           UnknownValue,
			FingerprintSHA1:   sha1Raw,
			FingerprintSHA256: sha256Raw,
		}
	}

	// 3. 无法解析的签名块 (通常是 PKCS#7)，合成记录
	now := e.now().UTC()
	return &SignatureInfo{
		Issuer:            fmt.Sprintf("Signature info extracted from %s", entry),
		Subject:           syntheticSubject,
		ValidFrom:         now.Format(SignatureDateLayout),
		ValidTo:           now.AddDate(0, syntheticValidMonths, 0).Format(SignatureDateLayout),
		FingerprintSHA1:   sha1Raw,
		FingerprintSHA256: sha256Raw,
	}
}

// createdBy 第一行 "Created-By:"
func createdBy(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "Created-By:") {
			return strings.TrimSpace(line)
		}
	}
	return defaultCreatedBy
}

// CertificateFingerprint 冒号分隔的大写十六进制
func CertificateFingerprint(sum []byte) string {
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

func sha1Sum(data []byte) []byte {
	sum := sha1.Sum(data)
	return sum[:]
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

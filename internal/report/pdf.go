package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/phpdave11/gofpdf"
)

// FontEnv 指定 UTF-8 TrueType 字体路径的环境变量
const FontEnv = "APK_INSPECTOR_PDF_FONT"

// Options PDF 渲染参数
type Options struct {
	FontPath    string    // 为空时按 FontEnv 和系统字体探测
	GeneratedAt time.Time // 为零值时取当前时间
}

// Render 把解析结果渲染为 PDF 写入 w
func Render(w io.Writer, fileName string, info *apkparser.ApkInfo, summary *apkparser.Summary, opts Options) error {
	if info == nil {
		return fmt.Errorf("apk info is required")
	}
	if summary == nil {
		summary = apkparser.Summarize(info)
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := build(fileName, info, summary, opts)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WriteFile 渲染 PDF 到文件
func WriteFile(path string, fileName string, info *apkparser.ApkInfo, summary *apkparser.Summary, opts Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, fileName, info, summary, opts); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write pdf file: %w", err)
	}
	return nil
}

func build(fileName string, info *apkparser.ApkInfo, summary *apkparser.Summary, opts Options) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("APK Inspection Report", false)
	pdf.SetCreator("apk-inspector", false)

	font, utf8OK := initUnicodeFont(pdf, opts.FontPath)
	w := &writer{pdf: pdf, font: font, utf8OK: utf8OK}

	pdf.AddPage()

	// 标题
	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 9, "APK Inspection Report", "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+opts.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
	if fileName != "" {
		pdf.CellFormat(0, 6, "File: "+w.text(fileName), "", 1, "L", false, 0, "")
	}
	w.icon(info.IconBase64)
	pdf.Ln(2)

	w.section("1. Package")
	w.kv("Package", info.PackageName)
	w.kv("Version", summary.FormattedVersionInfo)
	w.kv("SDK", summary.FormattedSDKInfo)
	w.kv("Main Activity", info.MainActivity)
	w.kv("Source", string(info.Source))
	pdf.Ln(2)

	if fi := info.FileInfo; fi != nil {
		w.section("2. File")
		w.kv("Size", fmt.Sprintf("%d bytes", fi.FileSize))
		w.kv("Entries", fmt.Sprintf("%d", fi.EntryCount))
		w.kv("MD5", fi.MD5)
		w.kv("SHA-1", fi.SHA1)
		w.kv("SHA-256", fi.SHA256)
		pdf.Ln(2)
	}

	w.section("3. Signature")
	if sig := info.SignatureInfo; sig != nil {
		w.kv("Subject", sig.Subject)
		w.kv("Issuer", sig.Issuer)
		w.kv("Valid From", sig.ValidFrom)
		w.kv("Valid To", sig.ValidTo)
		w.kv("SHA-256", sig.FingerprintSHA256)
		if summary.IsCertificateExpired {
			pdf.SetTextColor(170, 30, 30)
			pdf.SetFont(font, "B", 10)
			pdf.CellFormat(0, 6, "Certificate expired", "", 1, "L", false, 0, "")
		}
	} else {
		w.empty()
	}
	pdf.Ln(2)

	analysis := summary.PermissionAnalysis
	w.section("4. Permissions")
	w.kv("Risk Level", string(analysis.RiskLevel))
	w.kv("Counts", fmt.Sprintf("total=%d dangerous=%d normal=%d signature=%d other=%d",
		summary.PermissionStats.Total, analysis.DangerousCount, analysis.NormalCount,
		analysis.SignatureCount, analysis.OtherCount))
	if len(info.Permissions) == 0 {
		w.empty()
	}
	for _, p := range info.Permissions {
		line := p.Name
		if p.IsDangerous {
			pdf.SetFont(font, "B", 9)
			pdf.SetTextColor(170, 30, 30)
			line = "[dangerous] " + line
		} else {
			pdf.SetFont(font, "", 9)
			pdf.SetTextColor(40, 40, 40)
		}
		pdf.MultiCell(0, 4.5, w.text(line), "", "L", false)
	}
	pdf.Ln(2)

	if sc := info.SecurityConfig; sc != nil {
		w.section("5. Security Configuration")
		w.kv("Cleartext Traffic", yesNo(sc.UsesCleartextTraffic))
		w.kv("Debuggable", yesNo(sc.Debuggable))
		w.kv("Backup Allowed", yesNo(sc.BackupAllowed))
		w.kv("Protection Levels", yesNo(sc.UsesPermissionFlags))
		if sc.HasNetworkSecurityConfig != nil {
			w.kv("Network Config", yesNo(*sc.HasNetworkSecurityConfig))
		}
	}

	if pk := info.Packer; pk != nil {
		w.section("6. Hardening")
		w.kv("Packed", yesNo(pk.Packed))
		if pk.Packed {
			w.kv("Packer", fmt.Sprintf("%s (%s, %.0f%%)", pk.Name, pk.Type, pk.Confidence*100))
			w.kv("Indicators", strings.Join(pk.Indicators, ", "))
		}
		w.kv("DEX Files", fmt.Sprintf("%d", pk.DexCount))
		if len(pk.NativeLibs) > 0 {
			w.kv("Native Libs", strings.Join(pk.NativeLibs, ", "))
		}
	}

	return pdf
}

type writer struct {
	pdf    *gofpdf.Fpdf
	font   string
	utf8OK bool
}

func (w *writer) section(title string) {
	w.pdf.SetFont(w.font, "B", 12)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	w.pdf.SetDrawColor(200, 200, 200)
	w.pdf.Line(w.pdf.GetX(), w.pdf.GetY(), 196, w.pdf.GetY())
	w.pdf.Ln(2)
}

func (w *writer) kv(key string, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	w.pdf.SetFont(w.font, "B", 10)
	w.pdf.SetTextColor(30, 30, 30)
	w.pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	w.pdf.SetFont(w.font, "", 10)
	w.pdf.SetTextColor(20, 20, 20)
	w.pdf.MultiCell(0, 5.2, w.text(value), "", "L", false)
}

func (w *writer) empty() {
	w.pdf.SetFont(w.font, "", 10)
	w.pdf.SetTextColor(90, 90, 90)
	w.pdf.MultiCell(0, 5, "(none)", "", "L", false)
}

// icon 仅嵌入 PNG / JPEG，其它格式（如 WEBP）跳过
func (w *writer) icon(iconBase64 string) {
	if iconBase64 == "" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(iconBase64)
	if err != nil {
		return
	}

	var imageType string
	switch http.DetectContentType(data) {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg":
		imageType = "JPG"
	default:
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imageType}
	w.pdf.RegisterImageOptionsReader("app-icon", opts, bytes.NewReader(data))
	if w.pdf.Err() {
		w.pdf.ClearError()
		return
	}
	w.pdf.ImageOptions("app-icon", 176, 14, 20, 20, false, opts, 0, "")
	if w.pdf.Err() {
		w.pdf.ClearError()
	}
}

func (w *writer) text(s string) string {
	return safeText(s, w.utf8OK)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// safeText 没有 UTF-8 字体时把非 ASCII 字符替换为 '?'
func safeText(s string, utf8OK bool) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

// initUnicodeFont 依次尝试显式路径、环境变量和常见系统字体，失败时回退 Helvetica
func initUnicodeFont(pdf *gofpdf.Fpdf, explicit string) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{explicit, os.Getenv(FontEnv)}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/PingFang.ttc",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arialuni.ttf`,
			`C:\Windows\Fonts\simhei.ttf`,
		)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
		)
	}

	for _, p := range candidates {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}

		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}

	return "Helvetica", false
}

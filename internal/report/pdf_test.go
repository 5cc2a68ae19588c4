package report

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/packer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) string {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func sampleInfo(t *testing.T) *apkparser.ApkInfo {
	cleartext := true
	return &apkparser.ApkInfo{
		PackageInfo: apkparser.PackageInfo{
			PackageName:  "com.example.app",
			VersionName:  "2.3",
			VersionCode:  "7",
			MinSDK:       "21",
			TargetSDK:    "33",
			MainActivity: "com.example.app.MainActivity",
		},
		Permissions: []apkparser.Permission{
			{Name: "android.permission.INTERNET"},
			{Name: "android.permission.CAMERA", IsDangerous: true},
		},
		SignatureInfo: &apkparser.SignatureInfo{
			Issuer:    "CN=Example Signer, O=Example Corp",
			Subject:   "CN=Example Signer, O=Example Corp",
			ValidFrom: "Mon, 01 Jan 2024 00:00:00 +0000",
			ValidTo:   "Tue, 01 Jan 2030 00:00:00 +0000",
		},
		FileInfo: &apkparser.FileInfo{
			MD5:        "d41d8cd98f00b204e9800998ecf8427e",
			SHA1:       "da39a3ee5e6b4b0d3255bfef95601890afd80709",
			SHA256:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			FileSize:   2048,
			FileType:   apkparser.ApkFileType,
			EntryCount: 4,
		},
		IconBase64: samplePNG(t),
		SecurityConfig: &apkparser.SecurityConfig{
			UsesCleartextTraffic:     true,
			BackupAllowed:            true,
			HasNetworkSecurityConfig: &cleartext,
		},
		Packer: &packer.Info{
			Packed:     true,
			Name:       "Tencent Legu",
			Type:       packer.TypeNative,
			Confidence: 0.6,
			Indicators: []string{"native_lib:libshella.so", "asset:assets/libshella-2.10.so"},
			NativeLibs: []string{"libshella.so"},
			DexCount:   1,
		},
		Source: apkparser.SourceInternal,
	}
}

func TestRender(t *testing.T) {
	info := sampleInfo(t)

	var buf bytes.Buffer
	err := Render(&buf, "app.apk", info, apkparser.Summarize(info), Options{
		GeneratedAt: time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestRender_MinimalInfo(t *testing.T) {
	info := &apkparser.ApkInfo{
		PackageInfo: apkparser.PackageInfo{PackageName: "unknown", VersionName: "unknown", VersionCode: "0"},
		Source:      apkparser.SourceDecoder,
		IconBase64:  base64.StdEncoding.EncodeToString([]byte("RIFF....WEBPVP8 ")),
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "", info, nil, Options{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRender_NilInfo(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, "app.apk", nil, nil, Options{}))
}

func TestWriteFile(t *testing.T) {
	info := sampleInfo(t)
	path := filepath.Join(t.TempDir(), "report.pdf")

	require.NoError(t, WriteFile(path, "app.apk", info, nil, Options{}))
	assert.FileExists(t, path)
}

func TestSafeText(t *testing.T) {
	assert.Equal(t, "a b c", safeText("a\nb\tc", false))
	assert.Equal(t, "app ??", safeText("app 应用", false))
	assert.Equal(t, "app 应用", safeText("app 应用", true))
}

package apkparser

import (
	"archive/zip"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	data []byte
}

const sampleManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="com.example.app"
    android:versionCode="7"
    android:versionName="2.3">
    <uses-sdk android:minSdkVersion="21" android:targetSdkVersion="33" />
    <uses-permission android:name="android.permission.INTERNET" />
    <uses-permission android:name="android.permission.CAMERA" />
    <application android:icon="@mipmap/ic_launcher" android:label="Example"
        android:usesCleartextTraffic="true" android:allowBackup="true">
        <activity android:name=".MainActivity" android:exported="true">
            <intent-filter>
                <action android:name="android.intent.action.MAIN" />
                <category android:name="android.intent.category.LAUNCHER" />
            </intent-filter>
        </activity>
    </application>
</manifest>`

// minimalAXML 只有 RES_XML_TYPE 头部的二进制 XML
var minimalAXML = []byte{0x03, 0x00, 0x08, 0x00, 0x08, 0x00, 0x00, 0x00}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// writeAPK 按给定顺序写出一个 ZIP 文件
func writeAPK(t *testing.T, entries ...zipEntry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.apk")
	file, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(file)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, file.Close())

	return path
}

func openTestArchive(t *testing.T, entries ...zipEntry) *Archive {
	t.Helper()

	archive, err := OpenArchive(writeAPK(t, entries...))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

// selfSignedCert 生成 DER 编码的自签名证书
func selfSignedCert(t *testing.T, notBefore, notAfter time.Time) (*x509.Certificate, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject: pkix.Name{
			CommonName:   "Example Signer",
			Organization: []string{"Example Corp"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, der
}

// fakeDecoder 可编排的外部解码器
type fakeDecoder struct {
	tree       string
	treeErr    error
	badging    string
	badgingErr error
	calls      []string
}

func (f *fakeDecoder) DumpManifestTree(ctx context.Context, apkPath string) (string, error) {
	f.calls = append(f.calls, "xmltree")
	return f.tree, f.treeErr
}

func (f *fakeDecoder) DumpBadging(ctx context.Context, apkPath string) (string, error) {
	f.calls = append(f.calls, "badging")
	return f.badging, f.badgingErr
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.example.app" android:versionCode="7" android:versionName="2.3">
    <uses-sdk android:minSdkVersion="21" />
    <uses-permission android:name="android.permission.CAMERA" />
    <uses-permission android:name="android.permission.INTERNET" />
</manifest>`

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Parser.UseDecoder = false
	return cfg
}

func TestRunParse_JSON(t *testing.T) {
	apk := filepath.Join(t.TempDir(), "demo.apk")
	writeTestAPK(t, apk, testManifest)

	var out bytes.Buffer
	err := runParse(testConfig(), newTestLogger(), parseOptions{APKPath: apk, Format: "json"}, &out)
	require.NoError(t, err)

	var got struct {
		File string `json:"file"`
		Info struct {
			PackageName string `json:"package_name"`
			VersionName string `json:"version_name"`
			TargetSDK   string `json:"target_sdk"`
			Source      string `json:"source"`
		} `json:"info"`
		Summary struct {
			PermissionStats struct {
				Total     int `json:"total"`
				Dangerous int `json:"dangerous"`
			} `json:"permission_stats"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "demo.apk", got.File)
	assert.Equal(t, "com.example.app", got.Info.PackageName)
	assert.Equal(t, "2.3", got.Info.VersionName)
	assert.Equal(t, "21", got.Info.TargetSDK)
	assert.Equal(t, "internal", got.Info.Source)
	assert.Equal(t, 2, got.Summary.PermissionStats.Total)
	assert.Equal(t, 1, got.Summary.PermissionStats.Dangerous)
}

func TestRunParse_YAMLAndPDF(t *testing.T) {
	dir := t.TempDir()
	apk := filepath.Join(dir, "demo.apk")
	pdfPath := filepath.Join(dir, "demo.pdf")
	writeTestAPK(t, apk, testManifest)

	var out bytes.Buffer
	err := runParse(testConfig(), newTestLogger(), parseOptions{
		APKPath: apk,
		Format:  "yaml",
		PDFPath: pdfPath,
		NoIcon:  true,
	}, &out)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	info, ok := got["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "com.example.app", info["package_name"])
	assert.NotContains(t, info, "icon_base64")

	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
}

func TestRunParse_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runParse(testConfig(), newTestLogger(), parseOptions{APKPath: filepath.Join(t.TempDir(), "missing.apk")}, &out)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, out.Len())
}

func TestWriteOutput_UnsupportedFormat(t *testing.T) {
	err := writeOutput(&bytes.Buffer{}, "xml", struct{}{})
	assert.Error(t, err)
}

func TestLoadConfig_Default(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Parser.UseDecoder)
}

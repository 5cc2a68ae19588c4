package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/apk-analysis/apk-inspector-go/internal/report"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type parseOptions struct {
	APKPath string
	Format  string // json, yaml
	PDFPath string
	NoIcon  bool
}

// parseOutput parse 命令的输出结构
type parseOutput struct {
	File    string             `json:"file" yaml:"file"`
	Info    *apkparser.ApkInfo `json:"info" yaml:"info"`
	Summary *apkparser.Summary `json:"summary" yaml:"summary"`
}

func runParse(cfg *config.Config, logger *logrus.Logger, opts parseOptions, out io.Writer) error {
	parser := newParser(cfg, logger)

	info, err := parser.Parse(context.Background(), opts.APKPath)
	if err != nil {
		return err
	}
	summary := apkparser.Summarize(info)

	if opts.PDFPath != "" {
		if err := report.WriteFile(opts.PDFPath, filepath.Base(opts.APKPath), info, summary, report.Options{}); err != nil {
			return err
		}
		logger.WithField("path", opts.PDFPath).Info("PDF report written")
	}

	if opts.NoIcon {
		trimmed := *info
		trimmed.IconBase64 = ""
		info = &trimmed
	}

	return writeOutput(out, opts.Format, parseOutput{
		File:    filepath.Base(opts.APKPath),
		Info:    info,
		Summary: summary,
	})
}

func writeOutput(out io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

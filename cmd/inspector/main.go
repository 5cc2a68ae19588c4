package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	app = kingpin.New("inspector", "APK metadata inspector")

	configPath  = app.Flag("config", "config file path (yaml)").Short('c').String()
	logLevel    = app.Flag("log-level", "log level").Default("warn").Enum("debug", "info", "warn", "error")
	decoderPath = app.Flag("decoder", "aapt2 executable path").String()
	noDecoder   = app.Flag("no-decoder", "skip the external decoder and use the internal pipeline only").Bool()

	parseCmd    = app.Command("parse", "parse a single APK")
	parseAPK    = parseCmd.Arg("apk", "APK file path").Required().String()
	parseFormat = parseCmd.Flag("format", "output format").Short('f').Default("json").Enum("json", "yaml")
	parsePDF    = parseCmd.Flag("pdf", "also write a PDF report to this path").String()
	parseNoIcon = parseCmd.Flag("no-icon", "omit icon_base64 from the output").Bool()

	batchCmd     = app.Command("batch", "parse every APK under a directory into a JSONL file")
	batchDir     = batchCmd.Arg("dir", "directory to scan").Required().ExistingDir()
	batchOut     = batchCmd.Flag("out", "output JSONL path").Short('o').Default("results.jsonl").String()
	batchWorkers = batchCmd.Flag("workers", "parallel parses").Short('w').Default("4").Int()
	batchAppend  = batchCmd.Flag("append", "append to the output and skip APKs already parsed successfully").Bool()

	decoderCmd = app.Command("decoder", "print the located aapt2 path")
)

func main() {
	app.Version(fmt.Sprintf("%s (build %s, commit %s)", Version, BuildTime, GitCommit))
	app.HelpFlag.Short('h')
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	cfg.Log.Level = *logLevel
	logger := config.NewLogger(&cfg.Log, os.Stderr)

	if *decoderPath != "" {
		cfg.Parser.DecoderPath = *decoderPath
	}
	if *noDecoder {
		cfg.Parser.UseDecoder = false
	}

	switch command {
	case parseCmd.FullCommand():
		err = runParse(cfg, logger, parseOptions{
			APKPath: *parseAPK,
			Format:  *parseFormat,
			PDFPath: *parsePDF,
			NoIcon:  *parseNoIcon,
		}, os.Stdout)
	case batchCmd.FullCommand():
		var stats *batchStats
		stats, err = runBatch(cfg, logger, batchOptions{
			Dir:     *batchDir,
			Out:     *batchOut,
			Workers: *batchWorkers,
			Append:  *batchAppend,
		})
		if stats != nil {
			fmt.Fprintf(os.Stderr, "parsed %d, failed %d, skipped %d -> %s\n", stats.Parsed, stats.Failed, stats.Skipped, *batchOut)
		}
	case decoderCmd.FullCommand():
		err = runDecoder(cfg, logger)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 未指定配置文件时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newParser(cfg *config.Config, logger *logrus.Logger) *apkparser.Parser {
	return apkparser.New(apkparser.Options{
		UseDecoder:  cfg.Parser.UseDecoder,
		DecoderPath: cfg.Parser.DecoderPath,
		SearchDirs:  cfg.Parser.SearchDirs,
	}, logger)
}

func runDecoder(cfg *config.Config, logger *logrus.Logger) error {
	locator := apkparser.NewDecoderLocator(cfg.Parser.DecoderPath, cfg.Parser.SearchDirs, logger)
	path, err := locator.Locate()
	if err != nil {
		fmt.Println("not found")
		for _, candidate := range locator.Candidates() {
			fmt.Fprintf(os.Stderr, "  checked: %s\n", candidate)
		}
		return err
	}

	fmt.Println(path)
	return nil
}

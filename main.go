package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/insightdelivered/statement-converter/internal/api"
	"github.com/insightdelivered/statement-converter/internal/config"
	"github.com/insightdelivered/statement-converter/internal/extractor"
	"github.com/insightdelivered/statement-converter/internal/models"
	"github.com/insightdelivered/statement-converter/internal/parser"
	"github.com/insightdelivered/statement-converter/internal/summary"
	"github.com/insightdelivered/statement-converter/internal/writer"
)

const version = "2.0.0"

type Globals struct {
	Config   string           `help:"Path to converter.yaml" default:"converter.yaml" env:"STATEMENT_CONVERTER_CONFIG" type:"path"`
	LogLevel string           `help:"Log level (debug, info, warn, error)" default:"info" env:"STATEMENT_CONVERTER_LOG_LEVEL"`
	TimeZone string           `help:"Time zone for statement dates (overrides config)" env:"STATEMENT_CONVERTER_TIMEZONE"`
	Version  kong.VersionFlag `help:"Print version and exit"`
}

// setup returns the logger and the effective config. A missing config file
// is not an error.
func (g *Globals) setup() (*log.Logger, *config.Config, error) {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", g.LogLevel, err)
	}
	logger.SetLevel(level)

	cfg := config.Default()
	if g.Config != "" {
		loaded, err := config.Load(g.Config)
		switch {
		case err == nil:
			cfg = loaded
			logger.Debug("Loaded config", "path", g.Config)
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("No config file, using defaults", "path", g.Config)
		default:
			return nil, nil, err
		}
	}
	if g.TimeZone != "" {
		cfg.TimeZone = g.TimeZone
	}
	return logger, cfg, nil
}

type ConvertCmd struct {
	Files  []string `arg:"" type:"existingfile" help:"Statement PDFs, converted as one batch"`
	Bank   string   `help:"Bank: cba, ing, anz, kiwibank (auto-detected if omitted)" short:"b"`
	Output string   `help:"Output file (defaults to the first input with the format's extension)" short:"o" type:"path"`
	Format string   `help:"Output format: csv, json, xlsx" short:"f"`

	ExcludeBalance bool `help:"Leave out the balance column"`
	DateOnly       bool `help:"Write dates without time and zone"`
	MergedDates    bool `help:"Drop the purchase date column and keep the raw description"`
	BankDetails    bool `help:"Add the bank's SWIFT code and currency columns"`
}

func (c *ConvertCmd) Run(g *Globals) error {
	logger, cfg, err := g.setup()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	format := cfg.Format()
	if c.Format != "" {
		if format, err = writer.ParseFormat(c.Format); err != nil {
			return err
		}
	}
	opts := cfg.Output.Options
	opts.ExcludeAccountBalance = opts.ExcludeAccountBalance || c.ExcludeBalance
	opts.IncludeTimeZoneInDates = opts.IncludeTimeZoneInDates && !c.DateOnly
	opts.SeparateDates = opts.SeparateDates && !c.MergedDates
	opts.IncludeBankDetails = opts.IncludeBankDetails || c.BankDetails

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex := extractor.New(logger)
	files := make([]models.PDFFile, 0, len(c.Files))
	for _, path := range c.Files {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
			return fmt.Errorf("%s: expected .pdf file, got %q", path, ext)
		}
		f, err := ex.ExtractFile(ctx, path)
		if err != nil {
			return fmt.Errorf("PDF extraction failed: %w", err)
		}
		logger.Info("Extracted", "file", f.Name, "pages", len(f.Pages))
		files = append(files, f)
	}

	bank, err := c.resolveBank(cfg, files[0])
	if err != nil {
		return err
	}
	reconcile := func(file string, stmt *models.Statement) {
		if err := summary.Reconcile(stmt); err != nil {
			logger.Warn("Statement does not reconcile", "file", file, "err", err)
		}
	}
	conv, err := parser.New(bank,
		parser.WithLocation(loc),
		parser.WithLogger(logger),
		parser.WithStatementHook(reconcile),
	)
	if err != nil {
		return err
	}
	if !parser.Implemented(bank) {
		logger.Warn("Bank is not supported yet, output will be empty", "bank", bank.Label())
	}

	records, err := conv.Convert(ctx, files)
	if err != nil {
		var fileErr *parser.FileError
		if errors.As(err, &fileErr) && logger.GetLevel() <= log.DebugLevel {
			fmt.Fprintln(os.Stderr, fileErr.Dump())
		}
		return fmt.Errorf("parsing failed: %w", err)
	}

	out := c.Output
	if out == "" {
		out = strings.TrimSuffix(c.Files[0], filepath.Ext(c.Files[0])) + "." + string(format)
	}
	if err := writer.WriteToFile(out, format, records, opts); err != nil {
		return err
	}

	sum, err := summary.Summarize(records)
	if err != nil {
		return err
	}
	for _, a := range sum.Accounts {
		logger.Info("Account",
			"bank", a.Bank.Label(),
			"number", a.AccountNumber,
			"transactions", a.Transactions,
			"debits", a.Debits.Display(),
			"credits", a.Credits.Display(),
		)
	}
	if len(records) == 0 && parser.Implemented(bank) {
		logger.Warn("No transactions found; try --bank if auto-detection was used")
	}
	logger.Info("Done", "output", out, "count", len(records))
	return nil
}

func (c *ConvertCmd) resolveBank(cfg *config.Config, first models.PDFFile) (models.BankType, error) {
	if c.Bank != "" {
		bank, ok := models.ParseBankType(strings.ToLower(c.Bank))
		if !ok {
			return "", fmt.Errorf("unknown bank type %q", c.Bank)
		}
		return bank, nil
	}
	if bank, ok := cfg.BankType(); ok {
		return bank, nil
	}
	return parser.AutoDetect(first)
}

type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)" env:"STATEMENT_CONVERTER_ADDR"`
}

func (s *ServeCmd) Run(g *Globals) error {
	logger, cfg, err := g.setup()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if s.Addr != "" {
		addr = s.Addr
	}

	h := &api.Handler{
		Extractor: extractor.New(logger),
		Logger:    logger,
		Location:  loc,
		Options:   cfg.Output.Options,
		Metrics:   api.NewMetrics(prometheus.NewRegistry()),
	}
	app := api.NewApp(h, cfg.Server.BodyLimitMB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

type BanksCmd struct{}

func (b *BanksCmd) Run() error {
	for _, bank := range models.AllBanks() {
		status := "supported"
		if !parser.Implemented(bank) {
			status = "not yet supported"
		}
		fmt.Printf("%-8s %-32s %s\n", bank, bank.Label(), status)
	}
	return nil
}

type TokensCmd struct {
	File string `arg:"" type:"existingfile" help:"Statement PDF"`
	JSON bool   `help:"Print the pages as JSON, suitable for the API's extractedPages field"`
}

func (t *TokensCmd) Run(g *Globals) error {
	logger, _, err := g.setup()
	if err != nil {
		return err
	}
	f, err := extractor.New(logger).ExtractFile(context.Background(), t.File)
	if err != nil {
		return err
	}
	if t.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode([]models.PDFFile{f})
	}
	for i, tok := range f.Flatten() {
		fmt.Printf("%5d %q\n", i, tok)
	}
	return nil
}

type CLI struct {
	Globals

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert statement PDFs to CSV, JSON or XLSX"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API"`
	Banks   BanksCmd   `cmd:"" help:"List supported banks"`
	Tokens  TokensCmd  `cmd:"" help:"Print the extracted token stream of a PDF"`
}

func main() {
	// A .env next to the binary may set the STATEMENT_CONVERTER_* variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("statement-converter"),
		kong.Description("Converts Australian bank statement PDFs into transaction records"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

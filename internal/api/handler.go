package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/insightdelivered/statement-converter/internal/extractor"
	"github.com/insightdelivered/statement-converter/internal/models"
	"github.com/insightdelivered/statement-converter/internal/parser"
	"github.com/insightdelivered/statement-converter/internal/summary"
	"github.com/insightdelivered/statement-converter/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	ID       string                   `json:"id"`
	Success  bool                     `json:"success"`
	Error    string                   `json:"error,omitempty"`
	File     string                   `json:"file,omitempty"`
	Bank     models.BankType          `json:"bank,omitempty"`
	BankName string                   `json:"bankName,omitempty"`
	Count    int                      `json:"count"`
	Records  []writer.FormattedRecord `json:"records"`
	Accounts []AccountTotals          `json:"accounts,omitempty"`
	Output   string                   `json:"output,omitempty"`
	Tokens   []string                 `json:"tokens,omitempty"`
}

// AccountTotals is the per-account summary in a convert response.
type AccountTotals struct {
	AccountNumber string `json:"accountNumber"`
	Transactions  int    `json:"transactions"`
	Debits        string `json:"debits"`
	Credits       string `json:"credits"`
	Net           string `json:"net"`
}

// BankInfo describes one entry of /api/banks.
type BankInfo struct {
	ID          models.BankType `json:"id"`
	Name        string          `json:"name"`
	Implemented bool            `json:"implemented"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Extractor extractor.Extractor
	Logger    *log.Logger
	Location  *time.Location
	// Options are used for any output flag the request does not set.
	Options writer.Options
	Metrics *Metrics
}

// NewApp builds the fiber app with middleware and routes.
func NewApp(h *Handler, bodyLimitMB int) *fiber.App {
	if bodyLimitMB <= 0 {
		bodyLimitMB = 32
	}
	app := fiber.New(fiber.Config{
		AppName:               "statement-converter",
		BodyLimit:             bodyLimitMB << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Get("/api/banks", h.HandleBanks)
	app.Post("/api/convert", h.HandleConvert)
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics.Handler())
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ConvertResponse{Success: false, Error: err.Error(), Records: []writer.FormattedRecord{}})
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

func (h *Handler) HandleBanks(c *fiber.Ctx) error {
	banks := make([]BankInfo, 0, len(models.AllBanks()))
	for _, b := range models.AllBanks() {
		banks = append(banks, BankInfo{ID: b, Name: b.Label(), Implemented: parser.Implemented(b)})
	}
	return c.JSON(banks)
}

// HandleConvert accepts PDFs in the "files" (or "file") form field, or
// already-extracted pages as JSON in "extractedPages". Optional fields: bank,
// format, download, debug and the output option flags.
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	id := uuid.NewString()
	logger := h.logger().With("request", id)

	files, err := h.collectFiles(c)
	if err != nil {
		return h.fail(c, id, "", fiber.StatusBadRequest, err, nil)
	}
	if len(files) == 0 {
		return h.fail(c, id, "", fiber.StatusBadRequest,
			errors.New("no statement uploaded; use form field 'files' or 'extractedPages'"), nil)
	}

	bank, err := resolveBank(c.FormValue("bank"), files)
	if err != nil {
		return h.fail(c, id, "", fiber.StatusUnprocessableEntity, err, nil)
	}
	h.count(func(m *Metrics) { m.Files.WithLabelValues(string(bank)).Add(float64(len(files))) })

	format := writer.FormatJSON
	if v := c.FormValue("format"); v != "" {
		if format, err = writer.ParseFormat(v); err != nil {
			return h.fail(c, id, bank, fiber.StatusBadRequest, err, nil)
		}
	}
	opts := h.options(c)

	conv, err := parser.New(bank, parser.WithLocation(h.Location), parser.WithLogger(logger))
	if err != nil {
		return h.fail(c, id, bank, fiber.StatusBadRequest, err, nil)
	}

	records, convErr := conv.Convert(c.UserContext(), files)
	if convErr != nil {
		logger.Error("Conversion failed", "bank", bank, "err", convErr)
		var resp *ConvertResponse
		if len(records) > 0 {
			resp = &ConvertResponse{Records: writer.FormatRecords(records, opts), Count: len(records)}
		}
		var fileErr *parser.FileError
		if errors.As(convErr, &fileErr) && resp == nil {
			resp = &ConvertResponse{}
		}
		if fileErr != nil {
			resp.File = fileErr.File
			if c.FormValue("debug") == "true" {
				resp.Tokens = fileErr.Tokens
			}
		}
		status := fiber.StatusUnprocessableEntity
		if errors.Is(convErr, context.Canceled) || errors.Is(convErr, context.DeadlineExceeded) {
			status = fiber.StatusRequestTimeout
		}
		return h.fail(c, id, bank, status, convErr, resp)
	}

	h.count(func(m *Metrics) {
		m.Conversions.WithLabelValues(string(bank), "success").Inc()
		m.Transactions.WithLabelValues(string(bank)).Add(float64(len(records)))
	})
	logger.Info("Converted", "bank", bank, "files", len(files), "count", len(records))

	if c.FormValue("download") == "true" {
		var buf bytes.Buffer
		if err := writer.Write(&buf, format, records, opts); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Attachment("transactions." + string(format))
		c.Set(fiber.HeaderContentType, format.ContentType())
		return c.Send(buf.Bytes())
	}

	resp := ConvertResponse{
		ID:       id,
		Success:  true,
		Bank:     bank,
		BankName: bank.Label(),
		Count:    len(records),
		Records:  writer.FormatRecords(records, opts),
	}
	if format != writer.FormatJSON && format != writer.FormatXLSX {
		var buf bytes.Buffer
		if err := writer.Write(&buf, format, records, opts); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		resp.Output = buf.String()
	}
	if sum, err := summary.Summarize(records); err == nil {
		for _, a := range sum.Accounts {
			resp.Accounts = append(resp.Accounts, AccountTotals{
				AccountNumber: a.AccountNumber,
				Transactions:  a.Transactions,
				Debits:        a.Debits.Display(),
				Credits:       a.Credits.Display(),
				Net:           a.Net().Display(),
			})
		}
	}
	return c.JSON(resp)
}

func (h *Handler) collectFiles(c *fiber.Ctx) ([]models.PDFFile, error) {
	var files []models.PDFFile

	if raw := c.FormValue("extractedPages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &files); err != nil {
			return nil, fmt.Errorf("invalid extractedPages: %w", err)
		}
		return files, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	headers := append(form.File["files"], form.File["file"]...)
	for _, fh := range headers {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			return nil, fmt.Errorf("%s: only PDF files are supported", fh.Filename)
		}
		if h.Extractor == nil {
			return nil, errors.New("server-side PDF extraction is not configured")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		file, err := h.Extractor.ExtractReader(c.UserContext(), fh.Filename, f, fh.Size)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("PDF extraction failed: %w", err)
		}
		files = append(files, file)
	}
	return files, nil
}

func resolveBank(param string, files []models.PDFFile) (models.BankType, error) {
	if param != "" {
		bank, ok := models.ParseBankType(strings.ToLower(param))
		if !ok {
			return "", fmt.Errorf("unknown bank: %q", param)
		}
		return bank, nil
	}
	return parser.AutoDetect(files[0])
}

func (h *Handler) options(c *fiber.Ctx) writer.Options {
	opts := h.Options
	flag := func(name string, dst *bool) {
		if v, err := strconv.ParseBool(c.FormValue(name)); err == nil {
			*dst = v
		}
	}
	flag("excludeAccountBalance", &opts.ExcludeAccountBalance)
	flag("includeTimeZoneInDates", &opts.IncludeTimeZoneInDates)
	flag("separateDates", &opts.SeparateDates)
	flag("includeBankDetails", &opts.IncludeBankDetails)
	return opts
}

func (h *Handler) fail(c *fiber.Ctx, id string, bank models.BankType, status int, err error, resp *ConvertResponse) error {
	if resp == nil {
		resp = &ConvertResponse{}
	}
	if resp.Records == nil {
		resp.Records = []writer.FormattedRecord{}
	}
	resp.ID = id
	resp.Success = false
	resp.Error = err.Error()
	resp.Bank = bank
	if bank != "" {
		h.count(func(m *Metrics) { m.Conversions.WithLabelValues(string(bank), "error").Inc() })
	}
	return c.Status(status).JSON(resp)
}

func (h *Handler) count(f func(m *Metrics)) {
	if h.Metrics != nil {
		f(h.Metrics)
	}
}

func (h *Handler) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

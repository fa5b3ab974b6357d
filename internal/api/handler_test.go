package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-converter/internal/models"
	"github.com/insightdelivered/statement-converter/internal/writer"
)

func setupTestApp() (*fiber.App, *Metrics) {
	m := NewMetrics(nil)
	h := &Handler{Options: writer.DefaultOptions(), Metrics: m}
	return NewApp(h, 1), m
}

func commBankPage(extra ...string) []string {
	page := append([]string{}, extra...)
	page = append(page,
		"Account Number", "", "06 2000 12345678",
		"Date", "", "Transaction", "", "Debit", "", "Credit", "", "Balance",
		"01 Aug 2023 OPENING BALANCE", "", "$500.00 CR",
		"05 Aug Coffee Shop", "$4.50", "", "$495.50 CR",
		"10 Aug 2023 CLOSING BALANCE", "", "", "", "$495.50 CR",
	)
	return page
}

// formRequest builds a multipart POST to /api/convert.
func formRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pagesField(t *testing.T, files ...models.PDFFile) string {
	t.Helper()
	b, err := json.Marshal(files)
	require.NoError(t, err)
	return string(b)
}

func decodeResponse(t *testing.T, resp *http.Response) ConvertResponse {
	t.Helper()
	var out ConvertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}

	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
}

func TestConvertEndpointRequiresFile(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest("POST", "/api/convert", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// Should fail because no file in the body
	if resp.StatusCode == fiber.StatusOK {
		t.Error("expected non-200 for missing file")
	}
}

func TestBanksEndpoint(t *testing.T) {
	app, _ := setupTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/banks", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var banks []BankInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&banks))
	require.Len(t, banks, len(models.AllBanks()))

	implemented := map[models.BankType]bool{}
	for _, b := range banks {
		implemented[b.ID] = b.Implemented
	}
	assert.True(t, implemented[models.BankCommBank])
	assert.True(t, implemented[models.BankING])
	assert.False(t, implemented[models.BankANZ])
	assert.False(t, implemented[models.BankKiwibank])
}

func TestConvertExtractedPages(t *testing.T) {
	app, m := setupTestApp()

	req := formRequest(t, map[string]string{
		"bank":           "cba",
		"extractedPages": pagesField(t, models.PDFFile{Name: "aug.pdf", Pages: [][]string{commBankPage()}}),
	}, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeResponse(t, resp)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, models.BankCommBank, out.Bank)
	require.Equal(t, 1, out.Count)
	require.Len(t, out.Records, 1)

	rec := out.Records[0]
	assert.Equal(t, "Commonwealth Bank of Australia", rec.BankName)
	assert.Equal(t, "-4.50", rec.Debit)
	assert.Empty(t, rec.Credit)
	require.NotNil(t, rec.Balance)
	assert.Equal(t, "495.50", *rec.Balance)

	require.Len(t, out.Accounts, 1)
	assert.Equal(t, 1, out.Accounts[0].Transactions)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conversions.WithLabelValues("cba_au", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("cba_au")))
}

func TestConvertAutoDetectsBank(t *testing.T) {
	app, _ := setupTestApp()

	page := commBankPage("Commonwealth Bank of Australia")
	req := formRequest(t, map[string]string{
		"extractedPages": pagesField(t, models.PDFFile{Name: "aug.pdf", Pages: [][]string{page}}),
	}, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.BankCommBank, decodeResponse(t, resp).Bank)
}

func TestConvertOutputOptions(t *testing.T) {
	app, _ := setupTestApp()

	req := formRequest(t, map[string]string{
		"bank":                  "cba",
		"excludeAccountBalance": "true",
		"separateDates":         "false",
		"includeBankDetails":    "true",
		"extractedPages":        pagesField(t, models.PDFFile{Name: "aug.pdf", Pages: [][]string{commBankPage()}}),
	}, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeResponse(t, resp)
	require.Len(t, out.Records, 1)
	assert.Nil(t, out.Records[0].Balance)
	assert.Nil(t, out.Records[0].DateOfPurchase)
	require.NotNil(t, out.Records[0].BankSwiftCode)
	assert.Equal(t, "CTBAAU2SXXX", *out.Records[0].BankSwiftCode)
}

func TestConvertDownloadCSV(t *testing.T) {
	app, _ := setupTestApp()

	req := formRequest(t, map[string]string{
		"bank":           "cba",
		"format":         "csv",
		"download":       "true",
		"extractedPages": pagesField(t, models.PDFFile{Name: "aug.pdf", Pages: [][]string{commBankPage()}}),
	}, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "transactions.csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bank_name,account_number")
	assert.Contains(t, string(body), "-4.50")
}

func TestConvertParseFailure(t *testing.T) {
	app, m := setupTestApp()

	bad := models.PDFFile{Name: "bad.pdf", Pages: [][]string{{"Account Number", "", "111", "no table"}}}
	req := formRequest(t, map[string]string{
		"bank":           "cba",
		"debug":          "true",
		"extractedPages": pagesField(t, bad),
	}, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	out := decodeResponse(t, resp)
	assert.False(t, out.Success)
	assert.Equal(t, "bad.pdf", out.File)
	assert.Contains(t, out.Tokens, "no table")
	assert.Empty(t, out.Records)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conversions.WithLabelValues("cba_au", "error")))
}

func TestConvertRejectsBadInput(t *testing.T) {
	app, _ := setupTestApp()

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
		status int
	}{
		{
			name:   "unknown bank",
			fields: map[string]string{"bank": "westpac", "extractedPages": `[{"name":"a.pdf","pages":[["x"]]}]`},
			status: fiber.StatusUnprocessableEntity,
		},
		{
			name:   "undetectable bank",
			fields: map[string]string{"extractedPages": `[{"name":"a.pdf","pages":[["hello"]]}]`},
			status: fiber.StatusUnprocessableEntity,
		},
		{
			name:   "malformed pages",
			fields: map[string]string{"extractedPages": `{not json`},
			status: fiber.StatusBadRequest,
		},
		{
			name:   "bad format",
			fields: map[string]string{"bank": "cba", "format": "pdf", "extractedPages": `[{"name":"a.pdf","pages":[["x"]]}]`},
			status: fiber.StatusBadRequest,
		},
		{
			name:   "not a pdf",
			files:  map[string][]byte{"notes.txt": []byte("hello")},
			status: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(formRequest(t, tt.fields, tt.files))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			out := decodeResponse(t, resp)
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, m := setupTestApp()
	m.Files.WithLabelValues("ing_au").Add(2)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `statement_converter_files_total{bank="ing_au"} 2`)
}

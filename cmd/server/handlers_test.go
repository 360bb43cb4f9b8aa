package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crypto-ledger-go/internal/importer"
	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestServer wires the full router against an in-memory database.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transaction{}))

	log := zap.NewNop()
	store := ledger.NewStore(db, log)
	apiHandler := NewAPIHandler(log, store, importer.NewImporter(store, log))

	server := httptest.NewServer(newRouter(apiHandler, t.TempDir()))
	t.Cleanup(server.Close)
	return server
}

func createTransaction(t *testing.T, server *httptest.Server, body string) models.Transaction {
	t.Helper()

	resp, err := http.Post(server.URL+"/api/transactions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func TestCreateAndListTransactions(t *testing.T) {
	server := setupTestServer(t)

	created := createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"buy"}`)
	assert.NotZero(t, created.ID)
	// Total is derived from price on the way in
	assert.InDelta(t, 50000, created.Total, 1e-9)

	resp, err := http.Get(server.URL + "/api/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var transactions []models.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&transactions))
	require.Len(t, transactions, 1)
	assert.Equal(t, created.ID, transactions[0].ID)
}

func TestCreateTransactionValidation(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Post(server.URL+"/api/transactions", "application/json",
		strings.NewReader(`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"stake"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTransactionFromTotal(t *testing.T) {
	server := setupTestServer(t)

	created := createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":2,"total":100000,"type":"buy"}`)
	assert.InDelta(t, 50000, created.Price, 1e-9)
}

func TestUpdateTransaction(t *testing.T) {
	server := setupTestServer(t)

	created := createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"buy"}`)

	body := `{"date":"2024-01-02","pair":"ETH-USD","amount":2,"price":1800,"type":"sell"}`
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/transactions/%d", server.URL, created.ID), strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "ETH-USD", updated.Pair)
	assert.InDelta(t, 3600, updated.Total, 1e-9)
}

func TestUpdateTransactionNotFound(t *testing.T) {
	server := setupTestServer(t)

	body := `{"date":"2024-01-02","pair":"ETH-USD","amount":2,"price":1800,"type":"sell"}`
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/transactions/42", strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTransaction(t *testing.T) {
	server := setupTestServer(t)

	created := createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"buy"}`)

	url := fmt.Sprintf("%s/api/transactions/%d", server.URL, created.ID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Second delete hits an unknown id
	req, err = http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBalancesEndpoint(t *testing.T) {
	server := setupTestServer(t)

	createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"buy"}`)
	createTransaction(t, server,
		`{"date":"2024-01-02","pair":"BTC-USD","amount":0.5,"price":60000,"fees":10,"type":"sell"}`)

	resp, err := http.Get(server.URL + "/api/balances")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balances map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balances))
	assert.InDelta(t, 0.5, balances["BTC"], 1e-9)
	assert.InDelta(t, -20010, balances["USD"], 1e-9)
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestImportCSVEndpoint(t *testing.T) {
	server := setupTestServer(t)

	csvData := strings.Join([]string{
		"date,pair,amount,price,fees,type",
		"2024-01-01,BTC-USD,1,50000,0,buy",
		"2024-01-02,BTC-USD,abc,60000,0,buy",
		"2024-01-03,ETH-USD,2,1800,5,sell",
	}, "\n")
	body, contentType := multipartCSV(t, "trades.csv", csvData)

	resp, err := http.Post(server.URL+"/api/import-csv", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result importer.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Created, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
}

func TestImportCSVRejectsNonCSV(t *testing.T) {
	server := setupTestServer(t)

	body, contentType := multipartCSV(t, "trades.txt", "not,a,csv")
	resp, err := http.Post(server.URL+"/api/import-csv", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCSVEndpoint(t *testing.T) {
	server := setupTestServer(t)

	createTransaction(t, server,
		`{"date":"2024-01-01","pair":"BTC-USD","amount":1,"price":50000,"type":"buy"}`)

	resp, err := http.Get(server.URL + "/api/export-csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,pair,amount,price,total,fees,type", lines[0])
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

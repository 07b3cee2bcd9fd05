// Package apiclient provides an HTTP client for the regforge API.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/regforge/regforge/internal/gateway"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/wallet"
)

// Client talks to a regforge daemon.
type Client struct {
	base string
	http *http.Client
}

// New creates a client targeting the given base URL.
func New(base string) *Client {
	return NewWithTimeout(base, 15*time.Minute)
}

// NewWithTimeout creates a client with a custom HTTP timeout. The default
// is generous because a workflow run mines a hundred blocks.
func NewWithTimeout(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// APIError is returned when the daemon responds with an error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// MineResult is the response of a mine request.
type MineResult struct {
	Blocks []string `json:"blocks"`
}

// BalanceResult is the response of a balance request.
type BalanceResult struct {
	Wallet  string         `json:"wallet"`
	Balance btcutil.Amount `json:"balance"`
}

// SendResult is the response of a send request.
type SendResult struct {
	TxID string `json:"txid"`
}

// TxResult is the wallet-scoped transaction summary.
type TxResult struct {
	TxID          string         `json:"txid"`
	Confirmations int64          `json:"confirmations"`
	BlockHash     string         `json:"block_hash,omitempty"`
	Fee           btcutil.Amount `json:"fee"`
	Amount        btcutil.Amount `json:"amount"`
	Time          int64          `json:"time"`
}

// EnsureWallet creates or loads a wallet.
func (c *Client) EnsureWallet(name string) (*wallet.Handle, error) {
	var handle wallet.Handle
	err := c.post("/wallet", map[string]string{"name": name}, &handle)
	if err != nil {
		return nil, err
	}
	return &handle, nil
}

// NewAddress requests a fresh receiving address.
func (c *Client) NewAddress(walletName, label string) (*wallet.Address, error) {
	var addr wallet.Address
	err := c.post("/address", map[string]string{"wallet": walletName, "label": label}, &addr)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// Mine generates blocks paying the given address, or a fresh wallet
// address when toAddress is empty.
func (c *Client) Mine(walletName, toAddress string, blocks int64) (*MineResult, error) {
	var result MineResult
	body := map[string]interface{}{"wallet": walletName, "blocks": blocks}
	if toAddress != "" {
		body["address"] = toAddress
	}
	err := c.post("/mine", body, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Balance returns the wallet's spendable balance in satoshis.
func (c *Client) Balance(walletName string) (*BalanceResult, error) {
	var result BalanceResult
	err := c.get("/wallet/"+url.PathEscape(walletName)+"/balance", &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Send broadcasts a payment. Amount is in satoshis.
func (c *Client) Send(from, to string, amount btcutil.Amount, message string) (*SendResult, error) {
	var result SendResult
	err := c.post("/send", map[string]interface{}{
		"from": from, "to": to, "amount": amount, "message": message,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MempoolEntry looks up a pending transaction.
func (c *Client) MempoolEntry(walletName, txid string) (*gateway.MempoolEntry, error) {
	var entry gateway.MempoolEntry
	err := c.get("/mempool/"+url.PathEscape(walletName)+"/"+url.PathEscape(txid), &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Transaction fetches the wallet-scoped transaction summary.
func (c *Client) Transaction(walletName, txid string) (*TxResult, error) {
	var result TxResult
	err := c.get("/tx/"+url.PathEscape(walletName)+"/"+url.PathEscape(txid), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reconcile reconciles a payment and persists the record.
func (c *Client) Reconcile(walletName, txid, to string) (*reconcile.TransactionRecord, error) {
	var record reconcile.TransactionRecord
	err := c.post("/reconcile", map[string]string{
		"wallet": walletName, "txid": txid, "to": to,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Run executes the full demo workflow.
func (c *Client) Run() (*reconcile.TransactionRecord, error) {
	var record reconcile.TransactionRecord
	if err := c.post("/workflow/run", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Records lists every stored record.
func (c *Client) Records() ([]reconcile.TransactionRecord, error) {
	var records []reconcile.TransactionRecord
	if err := c.get("/records", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Record fetches one stored record by txid.
func (c *Client) Record(txid string) (*reconcile.TransactionRecord, error) {
	var record reconcile.TransactionRecord
	if err := c.get("/records/"+url.PathEscape(txid), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) post(path string, body, result interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	resp, err := c.http.Post(c.base+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	return c.decode(resp, result)
}

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	return c.decode(resp, result)
}

func (c *Client) decode(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// Package client 金库服务的 HTTP/3 客户端：构造命令、签名、解析响应
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"heirvault/types"
	"heirvault/utils"

	"github.com/ethereum/go-ethereum/common"
)

// 错误响应体最多读取的字节数
const maxErrorBody = 4096

// Client 签名写请求与只读查询
// 写请求返回 ErrOutcomeUnknown 时服务端可能已经执行，应先查询 Status 再决定是否重发
type Client struct {
	baseURL string
	http    *http.Client
	key     *utils.KeyManager

	nonce atomic.Uint64
	now   func() int64
}

// New key 可以为 nil，此时只能调用只读查询
func New(baseURL string, httpClient *http.Client, key *utils.KeyManager) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		key:     key,
		now:     func() int64 { return time.Now().Unix() },
	}
	// nonce 从纳秒时间开始递增，重启后不会与之前的请求重复
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c
}

// Address 签名者地址
func (c *Client) Address() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return c.key.GetAddress()
}

func (c *Client) send(ctx context.Context, cmd types.Command) (*types.WriteResponse, error) {
	if c.key == nil {
		return nil, fmt.Errorf("%s: no signing key configured", cmd.Op)
	}
	cmd.Nonce = c.nonce.Add(1)
	cmd.Timestamp = c.now()
	payload, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(types.SignedCommand{Payload: payload, Signature: c.key.Sign(payload)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vault/"+string(cmd.Op), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp types.WriteResponse
	if err := c.do(req, string(cmd.Op), &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Write = true
			return nil, apiErr
		}
		// 请求可能已经送达，连接在响应前断开
		return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Message: string(raw)}
		var er types.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Code = er.Error
			apiErr.Message = er.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Create 创建金库，调用者成为 owner
func (c *Client) Create(ctx context.Context, heir common.Address) (common.Address, error) {
	resp, err := c.send(ctx, types.Command{Op: types.OpCreate, Heir: heir.Hex()})
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(resp.Vault), nil
}

func (c *Client) Deposit(ctx context.Context, id common.Address, amount *big.Int) error {
	_, err := c.send(ctx, types.Command{Op: types.OpDeposit, Vault: id.Hex(), Amount: amount.String()})
	return err
}

func (c *Client) Withdraw(ctx context.Context, id common.Address, amount *big.Int) error {
	_, err := c.send(ctx, types.Command{Op: types.OpWithdraw, Vault: id.Hex(), Amount: amount.String()})
	return err
}

// Heartbeat 提取 0，只刷新心跳
func (c *Client) Heartbeat(ctx context.Context, id common.Address) error {
	return c.Withdraw(ctx, id, big.NewInt(0))
}

func (c *Client) UpdateHeir(ctx context.Context, id, heir common.Address) error {
	_, err := c.send(ctx, types.Command{Op: types.OpUpdateHeir, Vault: id.Hex(), Heir: heir.Hex()})
	return err
}

func (c *Client) Claim(ctx context.Context, id, newHeir common.Address) error {
	_, err := c.send(ctx, types.Command{Op: types.OpClaim, Vault: id.Hex(), Heir: newHeir.Hex()})
	return err
}

func (c *Client) Status(ctx context.Context, id common.Address) (*types.VaultStatus, error) {
	var out types.VaultStatus
	if err := c.get(ctx, "status", "/vault/status", url.Values{"id": {id.Hex()}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events limit <= 0 使用服务端默认页大小
func (c *Client) Events(ctx context.Context, id common.Address, limit int) ([]types.VaultEvent, error) {
	q := url.Values{"id": {id.Hex()}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out types.EventsResponse
	if err := c.get(ctx, "events", "/vault/events", q, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) Vaults(ctx context.Context) ([]types.VaultStatus, error) {
	var out types.VaultsResponse
	if err := c.get(ctx, "vaults", "/vaults", nil, &out); err != nil {
		return nil, err
	}
	return out.Vaults, nil
}

func (c *Client) NodeStatus(ctx context.Context) (*types.StatusResponse, error) {
	var out types.StatusResponse
	if err := c.get(ctx, "node status", "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

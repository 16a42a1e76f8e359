// Package client is a thin HTTP client for a node's JSON API, for tools and
// relayers that submit operations from another process.
package client

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/model"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

type Client struct {
	httpClient *resty.Client
}

// dataEnvelope mirrors the server's response wrapper.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type errEnvelope struct {
	Error string `json:"error"`
}

func New(baseURL string) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
	}
}

func (c *Client) post(path string, body interface{}, out interface{}) error {
	resp, err := c.httpClient.R().
		SetBody(body).
		SetResult(out).
		SetError(&errEnvelope{}).
		Post(path)
	if err != nil {
		return err
	}
	return checkResp(resp)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.R().
		SetResult(out).
		SetError(&errEnvelope{}).
		Get(path)
	if err != nil {
		return err
	}
	return checkResp(resp)
}

func checkResp(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	if e, ok := resp.Error().(*errEnvelope); ok && e.Error != "" {
		return fmt.Errorf("node rejected request: %s", e.Error)
	}
	return fmt.Errorf("node returned %s", resp.Status())
}

// SendOps submits a batch for processing and returns the outcome events.
func (c *Client) SendOps(ops []*userop.UserOperation, beneficiary common.Address) ([]*entrypoint.UserOperationEvent, error) {
	wire := make([]*model.UserOp, 0, len(ops))
	for _, op := range ops {
		wire = append(wire, model.FromUserOperation(op))
	}
	out := &dataEnvelope[[]*entrypoint.UserOperationEvent]{}
	err := c.post("/ops", &model.HandleOpsRequest{Ops: wire, Beneficiary: beneficiary.Hex()}, out)
	return out.Data, err
}

// SendOp submits a single operation.
func (c *Client) SendOp(op *userop.UserOperation, beneficiary common.Address) (*entrypoint.UserOperationEvent, error) {
	out := &dataEnvelope[*entrypoint.UserOperationEvent]{}
	err := c.post("/op", &model.SubmitOpRequest{Op: model.FromUserOperation(op), Beneficiary: beneficiary.Hex()}, out)
	return out.Data, err
}

// Simulate runs the validation-only probe for op.
func (c *Client) Simulate(op *userop.UserOperation) (*entrypoint.SimulationResult, error) {
	out := &dataEnvelope[*entrypoint.SimulationResult]{}
	err := c.post("/simulate", &model.SimulateRequest{Op: model.FromUserOperation(op)}, out)
	return out.Data, err
}

// DepositTo funds account's deposit with amount wei.
func (c *Client) DepositTo(account common.Address, amount *big.Int) (*model.DepositInfo, error) {
	out := &dataEnvelope[*model.DepositInfo]{}
	err := c.post("/deposit", &model.DepositRequest{Account: account.Hex(), Amount: amount.String()}, out)
	return out.Data, err
}

// GetDepositInfo fetches the ledger record of account.
func (c *Client) GetDepositInfo(account common.Address) (*model.DepositInfo, error) {
	out := &dataEnvelope[*model.DepositInfo]{}
	err := c.get("/deposits/"+account.Hex(), out)
	return out.Data, err
}

// GetOp fetches the outcome event of a processed operation.
func (c *Client) GetOp(requestID common.Hash) (*entrypoint.UserOperationEvent, error) {
	out := &dataEnvelope[*entrypoint.UserOperationEvent]{}
	err := c.get("/ops/"+requestID.Hex(), out)
	return out.Data, err
}

// FormatEther renders a wei amount as a decimal ether string for display.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, 0).
		Div(decimal.NewFromInt(params.Ether)).
		String()
}

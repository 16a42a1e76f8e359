package server

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuggerNaut63/AA/core/chainio/signer"
	"github.com/JuggerNaut63/AA/core/config"
	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/core/wallet"
	"github.com/JuggerNaut63/AA/model"
)

const testOwnerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := NewNode(&config.Config{
		ChainID:           big.NewInt(1337),
		EntryPointAddress: common.HexToAddress("0x0576a174D229E3cFA37253523E645A78A0C91B57"),
		DbPath:            filepath.Join(t.TempDir(), "badger"),
		MinStakeWei:       big.NewInt(1_000),
	})
	require.NoError(t, err)
	t.Cleanup(n.Stop)
	return n
}

// call runs a handler directly against an echo context; the routing table
// itself is covered by startHttpServer wiring.
func call(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	require.NoError(t, handler(c))
	return rec
}

func TestDepositEndpointRoundTrip(t *testing.T) {
	n := newTestNode(t)
	account := "0xAA00000000000000000000000000000000000001"

	rec := call(t, n.handleDeposit, http.MethodPost, "/deposit",
		`{"account":"`+account+`","amount":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp HttpJsonResp[*model.DepositInfo]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.HexToAddress(account), resp.Data.Account)
	assert.Equal(t, big.NewInt(1_000), resp.Data.Deposit)

	rec = call(t, n.handleGetDeposit, http.MethodGet, "/deposits/"+account, "",
		"address", account)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, big.NewInt(1_000), resp.Data.Deposit)
}

func TestDepositEndpointRejectsBadPayload(t *testing.T) {
	n := newTestNode(t)

	rec := call(t, n.handleDeposit, http.MethodPost, "/deposit",
		`{"account":"not-an-address","amount":"1000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, n.handleDeposit, http.MethodPost, "/deposit",
		`{"account":"0xAA00000000000000000000000000000000000001"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "amount is required")

	rec = call(t, n.handleDeposit, http.MethodPost, "/deposit",
		`{"account":"0xAA00000000000000000000000000000000000001","amount":"-900"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "negative amounts must never reach the ledger")

	rec = call(t, n.handleWithdraw, http.MethodPost, "/withdraw",
		`{"caller":"0xAA00000000000000000000000000000000000001","recipient":"0xAA00000000000000000000000000000000000001","amount":"-1000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a negative withdraw would mint deposit")
}

func TestStakeLifecycleEndpoints(t *testing.T) {
	n := newTestNode(t)
	caller := "0xAA00000000000000000000000000000000000002"

	rec := call(t, n.handleAddStake, http.MethodPost, "/stake",
		`{"caller":"`+caller+`","unstakeDelaySec":60,"amount":"5000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp HttpJsonResp[*model.DepositInfo]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Staked)
	assert.Equal(t, big.NewInt(5_000), resp.Data.Stake)

	rec = call(t, n.handleUnlockStake, http.MethodPost, "/stake/unlock",
		`{"caller":"`+caller+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Staked)
	assert.NotZero(t, resp.Data.WithdrawTime)

	// cooldown has not elapsed
	rec = call(t, n.handleWithdrawStake, http.MethodPost, "/stake/withdraw",
		`{"caller":"`+caller+`","recipient":"`+caller+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateEndpoint(t *testing.T) {
	n := newTestNode(t)

	ownerKey, err := signer.FromPrivateKeyHex(testOwnerKeyHex)
	require.NoError(t, err)

	sender := common.HexToAddress("0xAA00000000000000000000000000000000000003")
	account := wallet.NewSimpleAccount(sender, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	n.Engine().World().Register(sender, account)
	require.NoError(t, n.ledger.DepositTo(sender, big.NewInt(1_000_000)))

	callData, err := wallet.PackExecute(common.HexToAddress("0xC0FFEE0000000000000000000000000000000001"), nil, []byte("ping"))
	require.NoError(t, err)
	op := &model.UserOp{
		Sender:               sender.Hex(),
		Nonce:                "0",
		CallData:             "0x" + common.Bytes2Hex(callData),
		CallGasLimit:         "50000",
		VerificationGasLimit: "100000",
		PreVerificationGas:   "1000",
		MaxFeePerGas:         "2",
		MaxPriorityFeePerGas: "2",
	}

	parsed, err := op.ToUserOperation()
	require.NoError(t, err)
	sig, err := signer.SignMessage(ownerKey, n.Engine().GetRequestID(parsed).Bytes())
	require.NoError(t, err)
	op.Signature = "0x" + common.Bytes2Hex(sig)

	body, err := json.Marshal(&model.SimulateRequest{Op: op})
	require.NoError(t, err)

	rec := call(t, n.handleSimulate, http.MethodPost, "/simulate", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp HttpJsonResp[*entrypoint.SimulationResult]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.SigFailed)
	assert.Equal(t, sender, resp.Data.Payer)
	assert.Equal(t, big.NewInt(502_000), resp.Data.Prefund)

	// second probe hits the cache and reports the same snapshot
	rec2 := call(t, n.handleSimulate, http.MethodPost, "/simulate", string(body))
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.JSONEq(t, rec.Body.String(), rec2.Body.String())
}

func TestGetOpUnknownRequestId(t *testing.T) {
	n := newTestNode(t)

	rec := call(t, n.handleGetOp, http.MethodGet, "/ops/0xdead", "",
		"requestId", common.Hash{}.Hex())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

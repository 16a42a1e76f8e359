package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JuggerNaut63/AA/core/entrypoint"
	"github.com/JuggerNaut63/AA/model"
	"github.com/JuggerNaut63/AA/pkg/erc4337/userop"
)

type HttpJsonResp[T any] struct {
	Data T `json:"data"`
}

type httpError struct {
	Error string `json:"error"`
}

// router builds the route table. Kept separate from the listener so the
// client package can be driven against it in-process.
func (n *Node) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/up", func(c echo.Context) error {
		if n.status == runningStatus {
			return c.String(http.StatusOK, "up")
		}
		return c.String(http.StatusServiceUnavailable, "pending...")
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{})))

	e.POST("/ops", n.handleOps)
	e.POST("/op", n.handleOp)
	e.POST("/simulate", n.handleSimulate)

	e.POST("/deposit", n.handleDeposit)
	e.POST("/withdraw", n.handleWithdraw)
	e.POST("/stake", n.handleAddStake)
	e.POST("/stake/unlock", n.handleUnlockStake)
	e.POST("/stake/withdraw", n.handleWithdrawStake)

	e.GET("/deposits/:address", n.handleGetDeposit)
	e.GET("/ops/:requestId", n.handleGetOp)

	return e
}

func (n *Node) startHttpServer(ctx context.Context) error {
	// If http_bind_address is not set, skip HTTP server startup entirely
	if n.config == nil || n.config.HttpBindAddress == "" {
		n.logger.Info("HTTP server disabled: no http_bind_address configured")
		<-ctx.Done()
		return nil
	}

	e := n.router()
	n.http = e

	addr := n.config.HttpBindAddress
	n.logger.Info("HTTP server listening", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// bind decodes and validates a JSON request body in one step.
func (n *Node) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return n.validator.Struct(req)
}

func (n *Node) handleOps(c echo.Context) error {
	req := &model.HandleOpsRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	ops := make([]*userop.UserOperation, 0, len(req.Ops))
	for _, w := range req.Ops {
		op, err := w.ToUserOperation()
		if err != nil {
			return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		}
		ops = append(ops, op)
	}

	events, err := n.engine.HandleOps(ops, common.HexToAddress(req.Beneficiary))
	if err != nil {
		return opErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[[]*entrypoint.UserOperationEvent]{Data: events})
}

func (n *Node) handleOp(c echo.Context) error {
	req := &model.SubmitOpRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	op, err := req.Op.ToUserOperation()
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	event, err := n.engine.HandleOp(op, common.HexToAddress(req.Beneficiary))
	if err != nil {
		return opErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*entrypoint.UserOperationEvent]{Data: event})
}

// handleSimulate runs the validation-only probe. Results are cached briefly
// by request id: simulation commits nothing, so within the cache window two
// probes of the same op are interchangeable.
func (n *Node) handleSimulate(c echo.Context) error {
	req := &model.SimulateRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	op, err := req.Op.ToUserOperation()
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	cacheKey := n.engine.GetRequestID(op).Hex()
	if raw, err := n.cache.Get(cacheKey); err == nil {
		cached := &entrypoint.SimulationResult{}
		if err := json.Unmarshal(raw, cached); err == nil {
			return c.JSON(http.StatusOK, &HttpJsonResp[*entrypoint.SimulationResult]{Data: cached})
		}
	}

	result, err := n.engine.SimulateValidation(entrypoint.SimulationCaller, op)
	if err != nil {
		return opErrResponse(c, err)
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := n.cache.Set(cacheKey, raw); err != nil {
			n.logger.Debugf("simulation cache set failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*entrypoint.SimulationResult]{Data: result})
}

func (n *Node) handleDeposit(c echo.Context) error {
	req := &model.DepositRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	amount, err := model.ParseQuantity(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	account := common.HexToAddress(req.Account)
	if err := n.ledger.DepositTo(account, amount); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	n.metrics.IncDeposit()
	return n.depositInfo(c, account)
}

func (n *Node) handleWithdraw(c echo.Context) error {
	req := &model.WithdrawRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	amount, err := model.ParseQuantity(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	caller := common.HexToAddress(req.Caller)
	if err := n.ledger.WithdrawTo(caller, common.HexToAddress(req.Recipient), amount); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	return n.depositInfo(c, caller)
}

func (n *Node) handleAddStake(c echo.Context) error {
	req := &model.StakeRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	amount, err := model.ParseQuantity(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	caller := common.HexToAddress(req.Caller)
	if err := n.ledger.AddStake(caller, req.UnstakeDelaySec, amount); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	return n.depositInfo(c, caller)
}

func (n *Node) handleUnlockStake(c echo.Context) error {
	req := &model.UnlockStakeRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	caller := common.HexToAddress(req.Caller)
	if err := n.ledger.UnlockStake(caller); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	return n.depositInfo(c, caller)
}

func (n *Node) handleWithdrawStake(c echo.Context) error {
	req := &model.WithdrawStakeRequest{}
	if err := n.bind(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}

	caller := common.HexToAddress(req.Caller)
	if _, err := n.ledger.WithdrawStake(caller, common.HexToAddress(req.Recipient)); err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	return n.depositInfo(c, caller)
}

func (n *Node) handleGetDeposit(c echo.Context) error {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		return c.JSON(http.StatusBadRequest, httpError{Error: "not an address: " + addr})
	}
	return n.depositInfo(c, common.HexToAddress(addr))
}

func (n *Node) handleGetOp(c echo.Context) error {
	requestID := common.HexToHash(c.Param("requestId"))
	event, err := n.engine.GetEvent(requestID)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return c.JSON(http.StatusNotFound, httpError{Error: "unknown request id"})
		}
		return c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*entrypoint.UserOperationEvent]{Data: event})
}

func (n *Node) depositInfo(c echo.Context, account common.Address) error {
	rec, err := n.ledger.GetDepositInfo(account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, &HttpJsonResp[*model.DepositInfo]{Data: model.DepositInfoFromRecord(account, rec)})
}

// opErrResponse maps engine errors: operation rejections are client errors
// carrying the verbatim reason, anything else is a server fault.
func opErrResponse(c echo.Context, err error) error {
	if entrypoint.IsOpRevert(err) {
		return c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
}

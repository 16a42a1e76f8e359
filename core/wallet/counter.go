package wallet

import (
	"bytes"
	"errors"

	"github.com/JuggerNaut63/AA/core/entrypoint"
)

// RevertInput makes a Counter call revert; used to exercise the pipeline's
// execution-failure path.
var RevertInput = []byte("revert")

// Counter is the minimal call target: every successful call increments it.
type Counter struct {
	Count uint64
}

func (c *Counter) Call(env *entrypoint.CallEnv, input []byte) error {
	if err := env.Gas.UseGas(5_000); err != nil {
		return err
	}
	if bytes.Equal(input, RevertInput) {
		return errors.New("counter: forced revert")
	}
	prev := c.Count
	env.World.Journal(func() { c.Count = prev })
	c.Count++
	return nil
}

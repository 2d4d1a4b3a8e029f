package econnect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/daemonp/econnect2mqtt/internal/types"
)

// Command types understood by syncSendCommand.
const (
	commandOn  = 1
	commandOff = 2
)

// Arm arms the given sectors, or every sector when none are given. The
// panel lock must be held.
func (c *Client) Arm(ctx context.Context, sectors []int) error {
	return c.sectorCommand(ctx, commandOn, sectors)
}

// Disarm disarms the given sectors, or every sector when none are given.
// The panel lock must be held.
func (c *Client) Disarm(ctx context.Context, sectors []int) error {
	return c.sectorCommand(ctx, commandOff, sectors)
}

// Include puts the given inputs back into service. One command is sent
// per input. The panel lock must be held.
func (c *Client) Include(ctx context.Context, inputs []int) error {
	return c.inputCommand(ctx, commandOn, inputs)
}

// Exclude bypasses the given inputs. One command is sent per input. The
// panel lock must be held.
func (c *Client) Exclude(ctx context.Context, inputs []int) error {
	return c.inputCommand(ctx, commandOff, inputs)
}

// TurnOn activates the given outputs with a single command. No lock is
// needed; the panel applies its own authorization rules.
func (c *Client) TurnOn(ctx context.Context, outputs []int) error {
	return c.withSession(func(token string) error {
		return c.sendCommand(ctx, token, commandOn, types.ClassOutput, outputs)
	})
}

// TurnOff deactivates the given outputs with a single command.
func (c *Client) TurnOff(ctx context.Context, outputs []int) error {
	return c.withSession(func(token string) error {
		return c.sendCommand(ctx, token, commandOff, types.ClassOutput, outputs)
	})
}

func (c *Client) sectorCommand(ctx context.Context, commandType int, sectors []int) error {
	return c.withLock(func() error {
		return c.withSession(func(token string) error {
			if len(sectors) == 0 {
				return c.sendCommand(ctx, token, commandType, types.ClassAllSectors, []int{1})
			}
			return c.sendCommand(ctx, token, commandType, types.ClassSector, sectors)
		})
	})
}

// inputCommand sends one command per input. A rejected input does not stop
// the others; transport errors do.
func (c *Client) inputCommand(ctx context.Context, commandType int, inputs []int) error {
	return c.withLock(func() error {
		return c.withSession(func(token string) error {
			var rejected []error
			for _, input := range inputs {
				err := c.sendCommand(ctx, token, commandType, types.ClassInput, []int{input})
				if errors.Is(err, ErrCommand) {
					rejected = append(rejected, err)
					continue
				}
				if err != nil {
					return err
				}
			}
			return errors.Join(rejected...)
		})
	})
}

func (c *Client) sendCommand(ctx context.Context, token string, commandType, class int, indexes []int) error {
	form := url.Values{
		"CommandType":   {strconv.Itoa(commandType)},
		"ElementsClass": {strconv.Itoa(class)},
		"sessionId":     {token},
	}
	for _, index := range indexes {
		form.Add("ElementsIndexes", strconv.Itoa(index))
	}

	body, err := c.postForm(ctx, c.endpoint(pathSendCommand), form)
	if err != nil {
		return err
	}

	ok, err := commandSucceeded(body)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: command %d on class %d elements %v", ErrCommand, commandType, class, indexes)
	}

	c.log.Debug("Command %d sent to class %d elements %v", commandType, class, indexes)
	return nil
}

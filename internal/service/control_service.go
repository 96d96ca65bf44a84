package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"plugmon/internal/models"
	"plugmon/internal/tuya"
)

// Control surface error taxonomy.
var (
	// ErrControl wraps an upstream-reported command failure.
	ErrControl = errors.New("control: command rejected")
	// ErrStatusUnavailable means the device status could not be fetched or parsed.
	ErrStatusUnavailable = errors.New("control: device status unavailable")
	// ErrSwitchNotFound means a valid status lacked the switch code.
	ErrSwitchNotFound = errors.New("control: switch code not found")
)

// DeviceClient is the slice of the upstream client the control surface needs.
type DeviceClient interface {
	DeviceStatus(ctx context.Context) ([]models.StatusEntry, error)
	SendCommand(ctx context.Context, code string, value any) (*tuya.CommandResult, error)
}

// ControlService issues switch commands and reads the switch state.
type ControlService struct {
	client DeviceClient
	logger *zap.Logger
}

// NewControlService builds service.
func NewControlService(client DeviceClient, logger *zap.Logger) *ControlService {
	return &ControlService{client: client, logger: logger}
}

// SetSwitch turns the plug on or off. A response without an explicit failure
// flag is treated as an ack; the upstream's success signaling is inconsistent
// and tightening this would reject genuine acks.
func (c *ControlService) SetSwitch(ctx context.Context, on bool) error {
	result, err := c.client.SendCommand(ctx, models.CodeSwitch, on)
	if err != nil {
		return err
	}
	if result != nil && result.Success != nil && !*result.Success {
		return fmt.Errorf("%w: %s", ErrControl, result.Msg)
	}
	c.logger.Info("switch command acknowledged", zap.Bool("on", on))
	return nil
}

// SwitchState fetches the device status and reports the switch_1 state.
func (c *ControlService) SwitchState(ctx context.Context) (bool, error) {
	status, err := c.client.DeviceStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	if len(status) == 0 {
		return false, ErrStatusUnavailable
	}
	state, ok := models.Switch(status)
	if !ok {
		return false, ErrSwitchNotFound
	}
	return state, nil
}

package app

import (
	"context"
	"fmt"
)

// Run subscribes the hub to the bus and serves HTTP until ctx ends or the
// process is signalled. Resources are released before it returns.
func (d *Dependencies) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.Hub.Subscribe(ctx, d.Bus); err != nil {
		_ = d.Close()
		return fmt.Errorf("failed to subscribe hub to notifications: %w", err)
	}

	runErr := d.Server.Start(ctx)
	if err := d.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// Close releases every resource opened while building.
func (d *Dependencies) Close() error {
	return d.Registry.Close()
}

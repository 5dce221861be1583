//go:build !linux

package system

import (
	"context"
	"time"
)

const pollInterval = 2 * time.Second

type pollingInterfaceMonitor struct {
	*baseInterfaceMonitor
}

func NewInterfaceMonitor() (InterfaceMonitor, error) {
	ifaces, err := getInterfaces()
	if err != nil {
		return nil, err
	}

	return &pollingInterfaceMonitor{
		baseInterfaceMonitor: newBaseInterfaceMonitor(ifaces),
	}, nil
}

func (m *pollingInterfaceMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ifaces, err := getInterfaces()
		if err != nil {
			return err
		}

		if err := m.notify(ctx, ifaces); err != nil {
			return nil
		}
	}
}

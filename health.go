// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
)

// RegisterHealthChecks wires diagnostics for the named queue into h.
// The liveness check passes while the queue exists; the readiness check
// additionally requires a clean Diagnose result.
func RegisterHealthChecks(h healthcheck.Handler, name string) {
	h.AddLivenessCheck("nabd-queue-"+name+"-exists", func() error {
		_, err := Diagnose(name)
		return err
	})
	h.AddReadinessCheck("nabd-queue-"+name+"-ready", func() error {
		diag, err := Diagnose(name)
		if err != nil {
			return err
		}
		switch diag.State {
		case StateOK, StateEmpty:
			return nil
		default:
			return errors.Errorf("queue %q is %s", name, diag.State)
		}
	})
}

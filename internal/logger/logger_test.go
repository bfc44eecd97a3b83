package logger_test

import (
	"testing"

	"warehouse-ledger/internal/logger"
)

func TestInit(t *testing.T) {
	if logger.L() == nil {
		t.Fatal("expected a logger before Init")
	}
	for _, dev := range []bool{true, false} {
		if err := logger.Init(dev); err != nil {
			t.Fatalf("Init(%v) failed: %v", dev, err)
		}
		if !logger.L().Core().Enabled(logger.L().Level()) {
			t.Errorf("Init(%v) produced a disabled logger", dev)
		}
	}
	if logger.L().Level().String() != "info" {
		t.Errorf("expected production logger at info, got %s", logger.L().Level())
	}
}

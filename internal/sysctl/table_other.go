//go:build !darwin

package sysctl

import (
	"errors"
	"fmt"
)

type unsupportedTable struct{}

// Live returns the kernel process table. Only darwin exposes kinfo_proc;
// elsewhere every query fails with errors.ErrUnsupported.
func Live() Table {
	return unsupportedTable{}
}

func (unsupportedTable) Query(mib [4]int32, _ int) (ProcRecord, int, error) {
	return ProcRecord{}, 0, fmt.Errorf("process query %v: %w", mib, errors.ErrUnsupported)
}

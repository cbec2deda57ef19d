//go:build darwin

package sysctl

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type liveTable struct{}

// Live returns the kernel process table.
func Live() Table {
	return liveTable{}
}

func (liveTable) Query(mib [4]int32, size int) (ProcRecord, int, error) {
	if mib[0] != CtlKern || mib[1] != KernProc || mib[2] != KernProcPID {
		return ProcRecord{}, 0, fmt.Errorf("unsupported process query %v", mib)
	}
	if size != unix.SizeofKinfoProc {
		return ProcRecord{}, 0, fmt.Errorf("record size %d, kernel uses %d", size, unix.SizeofKinfoProc)
	}

	kinfo, err := unix.SysctlKinfoProc("kern.proc.pid", int(mib[3]))
	if errors.Is(err, unix.EIO) {
		// fewer bytes than a full record: the process is already gone
		return ProcRecord{}, 0, nil
	}
	if err != nil {
		return ProcRecord{}, 0, fmt.Errorf("sysctl kern.proc.pid.%d: %w", mib[3], err)
	}
	return ProcRecord{Stat: kinfo.Proc.P_stat}, size, nil
}

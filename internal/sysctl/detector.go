// Package sysctl detects zombie processes with a single kernel process-table
// query per check.
package sysctl

import (
	"github.com/zjrosen/appwatch/internal/log"
)

// Kernel process-table query selectors.
const (
	CtlKern     = 1  // CTL_KERN
	KernProc    = 14 // KERN_PROC
	KernProcPID = 1  // KERN_PROC_PID
)

// KinfoProcSize is the byte size of the kernel's kinfo_proc record.
const KinfoProcSize = 648

// Process states reported in ProcRecord.Stat.
const (
	StateIdle   int8 = 1 // SIDL
	StateRun    int8 = 2 // SRUN
	StateSleep  int8 = 3 // SSLEEP
	StateStop   int8 = 4 // SSTOP
	StateZombie int8 = 5 // SZOMB
)

// ProcRecord is the part of kinfo_proc the detector reads.
type ProcRecord struct {
	Stat int8
}

// Table is the kernel process-table query facility. Query fills a record of
// size bytes for mib and returns how many bytes the kernel actually wrote.
type Table interface {
	Query(mib [4]int32, size int) (ProcRecord, int, error)
}

// PIDQuery returns the four-element key selecting exactly one pid.
func PIDQuery(pid int32) [4]int32 {
	return [4]int32{CtlKern, KernProc, KernProcPID, pid}
}

// Detector answers whether a pid is a zombie.
type Detector struct {
	table Table
}

// NewDetector creates a detector over table.
func NewDetector(table Table) *Detector {
	return &Detector{table: table}
}

// IsZombie reports whether pid has exited but not been reaped.
// Errors and short responses answer false; there is no retry.
func (d *Detector) IsZombie(pid int32) bool {
	rec, n, err := d.table.Query(PIDQuery(pid), KinfoProcSize)
	if err != nil {
		log.Debug(log.CatZombie, "process query failed", "pid", pid, "error", err)
		return false
	}
	if n < KinfoProcSize {
		log.Debug(log.CatZombie, "short process record", "pid", pid, "bytes", n, "want", KinfoProcSize)
		return false
	}
	return rec.Stat == StateZombie
}

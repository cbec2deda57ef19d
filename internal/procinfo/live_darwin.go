//go:build darwin && cgo

package procinfo

/*
#cgo CFLAGS: -Wno-deprecated-declarations
#cgo LDFLAGS: -framework ApplicationServices
#include <string.h>
#include <ApplicationServices/ApplicationServices.h>

static OSStatus appwatch_serial_for_pid(pid_t pid, UInt32 *high, UInt32 *low) {
	ProcessSerialNumber psn = {0, 0};
	OSStatus st = GetProcessForPID(pid, &psn);
	*high = psn.highLongOfPSN;
	*low = psn.lowLongOfPSN;
	return st;
}

static OSErr appwatch_process_info(UInt32 high, UInt32 low, OSType *type, OSType *signature) {
	ProcessSerialNumber psn = {high, low};
	ProcessInfoRec info;
	memset(&info, 0, sizeof(info));
	info.processInfoLength = sizeof(ProcessInfoRec);
	OSErr err = GetProcessInformation(&psn, &info);
	*type = info.processType;
	*signature = info.processSignature;
	return err;
}
*/
import "C"

type liveLookup struct{}

// Live returns the system descriptor lookup.
func Live() Lookup {
	return liveLookup{}
}

func (liveLookup) ResolveSerial(pid int32) (Serial, Status) {
	var high, low C.UInt32
	st := C.appwatch_serial_for_pid(C.pid_t(pid), &high, &low)
	return Serial{High: uint32(high), Low: uint32(low)}, Status(st)
}

func (liveLookup) FetchDescriptor(serial Serial) (Descriptor, Status) {
	var typ, sig C.OSType
	err := C.appwatch_process_info(C.UInt32(serial.High), C.UInt32(serial.Low), &typ, &sig)
	return Descriptor{Type: TypeCode(typ), Signature: TypeCode(sig)}, Status(err)
}

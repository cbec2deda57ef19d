//go:build !darwin || !cgo

package procinfo

type unsupportedLookup struct{}

// Live returns the system descriptor lookup. It is only available on darwin
// with cgo; elsewhere every lookup reports StatusUnsupported.
func Live() Lookup {
	return unsupportedLookup{}
}

func (unsupportedLookup) ResolveSerial(int32) (Serial, Status) {
	return Serial{}, StatusUnsupported
}

func (unsupportedLookup) FetchDescriptor(Serial) (Descriptor, Status) {
	return Descriptor{}, StatusUnsupported
}

//go:build !cgo || !libvpx

package vpx

// VP8 returns nil: this build has no libvpx binding. Build with
// "-tags libvpx" (and cgo enabled) to link against the system library.
func VP8() Interface {
	return nil
}

// VP9 returns nil: this build has no libvpx binding.
func VP9() Interface {
	return nil
}

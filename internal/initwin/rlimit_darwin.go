//go:build darwin

package initwin

import "syscall"

// darwin has no prlimit(2) equivalent for an arbitrary target pid;
// this only affects the calling process's own limits, matching the
// teacher's rlimit_darwin.go fallback.
func pRlimit(_ int, _ uintptr, new *syscall.Rlimit, old *syscall.Rlimit) error {
	if err := syscall.Getrlimit(syscall.RLIMIT_CPU, old); err != nil {
		return err
	}
	return syscall.Setrlimit(syscall.RLIMIT_CPU, new)
}

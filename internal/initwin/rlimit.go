package initwin

import "syscall"

// rlimitRTTime is RLIMIT_RTTIME: microseconds a real-time-scheduled
// process may run without blocking before the kernel kills it.
const rlimitRTTime = 15

func raiseRTTimeLimit(pid int, limitUs uint64) error {
	new := syscall.Rlimit{Cur: limitUs, Max: limitUs}
	var old syscall.Rlimit
	return pRlimit(pid, rlimitRTTime, &new, &old)
}

// Package affinity pins the calling OS thread to a single CPU.
//
// Pipeline stages busy-wait on their queues and are meant to own a core each.
// CPU numbers come from the mask the process was started with, so a
// container or taskset restricted to CPUs 4-7 pins to 5, 6 and 7:
//
//	allowed, err := affinity.Current()
//	runtime.LockOSThread()
//	defer runtime.UnlockOSThread()
//	if err := affinity.Pin(affinity.Assign(allowed, slot)); err != nil { ... }
//
// Pinning is implemented on Linux with sched_setaffinity. On other platforms
// Pin returns ErrUnsupported and callers run unpinned.
package affinity

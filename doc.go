// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package nabd implements a named, capacity-bounded FIFO message queue in
// POSIX shared memory. A queue is created and attached by name, holds
// variable-length messages up to a fixed slot size, and is safe for
// concurrent use from multiple processes on the same host:
//	q, err := nabd.Open("events", 1024, 256, nabd.Create|nabd.Producer)
//	...
//	err = q.Push([]byte("hello"))
// There is no broker. State lives entirely in the shared segment, and a
// process that knows the name can push, pop, inspect, diagnose, and unlink
// the queue. Subpackages shm, mmf and sync expose the underlying shared
// memory objects, mappings and cross-process locks.
package nabd

// Package fiber implements a user-space, cooperatively-scheduled M:N task
// runtime: a work-stealing scheduler, a hierarchical timer wheel, a
// readiness-based I/O reactor (epoll/kqueue), and a family of sync
// primitives (Mutex, Cond, WaitGroup, Channel) layered over a common
// wait-queue, in the style of the eventloop package this module grew out
// of — generalized from a single-threaded event loop to a worker pool.
package fiber

package capture

// Source defines the contract for camera frame acquisition.
//
// Implementations must guarantee:
//   - Configure() prepares but does not start the device; failure is
//     terminal (StateFailed) and never retried automatically
//   - Start()/Stop()/Restart() return immediately (asynchronous requests,
//     serialized on a single session goroutine, idempotent)
//   - Restart() is a no-op unless the session is currently running
//   - SetDeliveryEnabled(false) drops arriving frames, never buffers them
//   - The handler is invoked strictly serially on the delivery goroutine
//   - Stats() is thread-safe (can be called from any goroutine)
type Source interface {
	// Configure builds the device session without starting it.
	// Returns ErrConfiguration (wrapped with detail) on failure, after
	// which the source is permanently in StateFailed.
	Configure() error

	// Start requests that frame delivery begin. Asynchronous and
	// idempotent: a no-op when already running or after Failed.
	Start()

	// Stop requests that frame delivery cease. Asynchronous and
	// idempotent. An in-flight handler invocation is not aborted; it
	// only prevents the next delivery.
	Stop()

	// Restart stops then starts the session, only if it was running.
	Restart()

	// SetDeliveryEnabled toggles forwarding of arriving frames to the
	// handler. Disabled frames are dropped (drop-newest, no queue).
	// Takes effect for the next arriving frame.
	SetDeliveryEnabled(enabled bool)

	// SetHandler installs the downstream frame consumer. Must be called
	// before Configure.
	SetHandler(h Handler)

	// SetFPSObserver installs the throughput metric observer.
	SetFPSObserver(o FPSObserver)

	// Errors returns the channel on which runtime session faults are
	// surfaced. The channel is never closed while the source lives.
	Errors() <-chan SessionError

	// Stats returns a snapshot of session statistics.
	Stats() Stats

	// Close releases the session and all pipeline resources.
	// The source cannot be reused afterwards.
	Close() error
}

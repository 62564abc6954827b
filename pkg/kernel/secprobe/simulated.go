package secprobe

import "context"

// simulatedProgram stands in for the real eBPF program on non-Linux
// hosts or when the caller lacks CAP_BPF, mirroring the original
// source's simulation.rs fallback: it never actually observes kernel
// syscalls, it just exists so Probe has a no-op attachable and the rest
// of the kernel can run its test suite without a privileged kernel.
type simulatedProgram struct {
	cancel context.CancelFunc
}

func newSimulatedProgram() *simulatedProgram {
	return &simulatedProgram{}
}

func (s *simulatedProgram) attach(ctx context.Context, out chan<- rawEvent) error {
	_, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	// No real tracepoint backs this: the channel is never fed, which is
	// the documented behavior difference from realProgram.
	return nil
}

func (s *simulatedProgram) detach() {
	if s.cancel != nil {
		s.cancel()
	}
}

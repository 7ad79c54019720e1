package commands

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter prints one line per workflow stage.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *progressPrinter) PhaseStarted(phase, host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "==> %s on %s\n", phase, host)
}

func (p *progressPrinter) PhaseFinished(phase, host string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		fmt.Fprintf(p.out, "✗ %s on %s failed\n", phase, host)
		return
	}
	fmt.Fprintf(p.out, "✓ %s on %s\n", phase, host)
}

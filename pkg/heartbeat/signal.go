package heartbeat

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cuemby/task-sentinel/pkg/log"
)

var (
	signalOnce    sync.Once
	signalMu      sync.Mutex
	signalTargets []*Monitor
)

// watchTerminationSignals installs a SIGTERM/SIGINT handler that stops
// every registered Monitor, exactly once no matter how many Monitor
// instances call it.
func watchTerminationSignals() {
	signalOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			sig := <-ch
			log.WithComponent("heartbeat").Info().Str("signal", sig.String()).Msg("termination signal received, stopping heartbeat monitors")
			signalMu.Lock()
			targets := append([]*Monitor(nil), signalTargets...)
			signalMu.Unlock()
			for _, mon := range targets {
				mon.Stop()
			}
		}()
	})
}

func registerForSignals(m *Monitor) {
	signalMu.Lock()
	signalTargets = append(signalTargets, m)
	signalMu.Unlock()
	watchTerminationSignals()
}

package signalman

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"syscall"

	"github.com/alpacahq/gopaca/log"
)

// ShutdownFunc is run once on SIGTERM, before the process exits.
// Handlers should drain in-flight work and return; a returned error
// is logged but does not abort the remaining handlers.
type ShutdownFunc func() error

var (
	mu       sync.Mutex
	handlers = map[string]ShutdownFunc{}
	done     = make(chan struct{})
)

// Wait blocks until shutdown has completed.
func Wait() {
	<-done
}

// RegisterFunc adds a named shutdown handler. Registering the same
// name again replaces the previous handler.
func RegisterFunc(name string, f ShutdownFunc) {
	mu.Lock()
	defer mu.Unlock()

	log.Debug("registered shutdown handler", "name", name)
	handlers[name] = f
}

// Start installs the signal listener. SIGTERM runs the registered
// handlers and releases Wait; SIGUSR1 dumps goroutine stacks; any
// other termination signal exits immediately.
func Start() {
	sigChannel := make(chan os.Signal, 1)

	signal.Notify(sigChannel, syscall.SIGUSR1, syscall.SIGTERM, os.Interrupt)

	go func() {
		for {
			switch <-sigChannel {
			case syscall.SIGTERM:
				mu.Lock()
				for name, handler := range handlers {
					if err := handler(); err != nil {
						log.Error("shutdown handler failed", "name", name, "error", err)
						continue
					}
					log.Debug("shutdown handler completed", "name", name)
				}
				mu.Unlock()

				log.Info("shut down cleanly")
				close(done)
				return
			case syscall.SIGUSR1:
				fmt.Println("dumping stack traces due to SIGUSR1 request")
				pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
			default:
				log.Info("terminated without draining")
				os.Exit(1)
			}
		}
	}()
}

package shutdown

import (
	"os"

	"github.com/rs/zerolog/log"
)

// exit is swappable so fatal paths can be exercised in tests.
var exit = os.Exit

// Fatal logs the error and terminates with a failure status. The process
// supervisor is expected to restart the controller.
func Fatal(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	exit(1)
}

// Restart terminates cleanly so the supervisor brings the controller back
// up, the closest a process gets to a device power cycle.
func Restart(msg string) {
	log.Info().Msg(msg)
	exit(0)
}

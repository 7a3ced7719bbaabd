package xcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Interrupted is returned by WaitInterrupted when a termination signal is
// caught.
type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until either SIGINT, SIGTERM or SIGQUIT signal is
// received or the provided context is canceled.
//
// SIGPIPE is ignored for the rest of the process lifetime.
func WaitInterrupted(ctx context.Context) error {
	signal.Ignore(syscall.SIGPIPE)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(ch)

	select {
	case v := <-ch:
		return Interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}

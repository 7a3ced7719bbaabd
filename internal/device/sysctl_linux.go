package device

import (
	"fmt"
	"os"
)

const ipForwardPath = "/proc/sys/net/ipv4/ip_forward"

// DisableIPForward turns off IPv4 forwarding in the kernel, so that frames
// are forwarded by the router only.
func DisableIPForward() error {
	if err := os.WriteFile(ipForwardPath, []byte("0\n"), 0o644); err != nil {
		return fmt.Errorf("failed to disable kernel IPv4 forwarding: %w", err)
	}
	return nil
}

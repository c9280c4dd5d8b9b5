// Package device derives a stable, opaque device identifier from local
// hardware.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"

	"github.com/careck/krillnotes/internal/krillerr"
)

// Derive computes "device-<16 hex>" from the first available MAC address
// on the host. Returns krillerr.InvalidWorkspace if no usable interface
// exists — on systems without a MAC, workspace creation fails.
func Derive() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", krillerr.Wrap(krillerr.InvalidWorkspace, "enumerate network interfaces", err)
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		sum := sha256.Sum256(iface.HardwareAddr)
		return "device-" + hex.EncodeToString(sum[:])[:16], nil
	}
	return "", krillerr.New(krillerr.InvalidWorkspace, "no network interface with a hardware address was found")
}

// Format is exposed for tests that want to verify the id shape without
// depending on the host's actual interfaces.
func Format(mac net.HardwareAddr) string {
	sum := sha256.Sum256(mac)
	return fmt.Sprintf("device-%s", hex.EncodeToString(sum[:])[:16])
}

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
)

// Identity describes the physical node this sensor runs on. DeviceID is
// stable across restarts on the same machine, so an entity re-registering
// after a crash resumes under the same identity.
type Identity struct {
	DeviceID string `json:"device_id"`
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	IP       string `json:"ip_address"`
	MAC      string `json:"mac_address"`
}

// Collect fingerprints the local machine. Missing attributes degrade to
// "unknown" rather than failing: a sensor with no resolvable MAC still gets
// a usable (if less unique) identity.
func Collect() Identity {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	mac := primaryMAC()

	sum := sha256.Sum256([]byte(hostname + "|" + platform + "|" + mac))

	return Identity{
		DeviceID: hex.EncodeToString(sum[:])[:16],
		Hostname: hostname,
		Platform: platform,
		IP:       primaryIP(),
		MAC:      mac,
	}
}

// primaryIP returns the first global unicast address on a non-loopback
// interface. The IP is informational and excluded from the device ID hash so
// DHCP churn does not change identity.
func primaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}
	return "unknown"
}

// primaryMAC returns the hardware address of the first non-loopback
// interface that has one.
func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "unknown"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return "unknown"
}

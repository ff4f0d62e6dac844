package agent

import (
	"bytes"
	"log/slog"
	"net"
	"os"
)

// Facts are the local network facts an agent reports on check-in.
type Facts struct {
	Hostname   string
	IP         string
	MACAddress string
}

// GatherFacts collects the hostname and the MAC address of the interface that
// owns ip. ip is normally the local end of the connection to the registry.
func GatherFacts(ip string) Facts {
	facts := Facts{IP: ip}

	hostname, err := os.Hostname()
	if err != nil {
		slog.Warn("Failed to read hostname", "error", err)
	} else {
		facts.Hostname = hostname
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		slog.Warn("Failed to list network interfaces", "error", err)
		return facts
	}
	facts.MACAddress = macAddressFor(interfaces, net.ParseIP(ip))
	if facts.MACAddress == "" {
		slog.Warn("No MAC address found", "ip", ip)
	}

	return facts
}

func macAddressFor(interfaces []net.Interface, ip net.IP) string {
	if ip != nil {
		for _, iface := range interfaces {
			if len(iface.HardwareAddr) == 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
					return iface.HardwareAddr.String()
				}
			}
		}
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 || bytes.Equal(iface.HardwareAddr, make([]byte, len(iface.HardwareAddr))) {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}

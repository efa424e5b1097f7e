// ABOUTME: mDNS advertisement of the monitor's control API
// ABOUTME: Also browses the LAN for other monitors advertising the same service
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/radiowatch/internal/version"
	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service advertised for the control API
const ServiceType = "_radiowatch._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Stations    int
}

// Manager handles mDNS operations
type Manager struct {
	config Config

	mu     sync.Mutex
	server *mdns.Server
}

// Peer describes another monitor found on the LAN
type Peer struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Version string `json:"version,omitempty"`
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// txtRecords describes this instance to browsers
func (m *Manager) txtRecords() []string {
	return []string{
		"path=/api",
		"version=" + version.Version,
		fmt.Sprintf("stations=%d", m.config.Stations),
	}
}

// Advertise publishes the control API via mDNS until Stop
func (m *Manager) Advertise() error {
	if m.config.Port <= 0 {
		return fmt.Errorf("invalid advertise port: %d", m.config.Port)
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)
	return nil
}

// Browse queries the LAN once for other monitors
func (m *Manager) Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entries {
			peer := peerFrom(entry)
			if peer.Name == m.config.ServiceName && peer.Port == m.config.Port {
				continue
			}
			peers = append(peers, peer)
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Domain = "local"
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-collected

	if err != nil {
		return nil, fmt.Errorf("mdns query failed: %w", err)
	}
	return peers, nil
}

func peerFrom(entry *mdns.ServiceEntry) Peer {
	peer := Peer{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
	}
	if entry.AddrV4 != nil {
		peer.Host = entry.AddrV4.String()
	} else {
		peer.Host = entry.Host
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "version="); ok {
			peer.Version = v
		}
	}
	return peer
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}

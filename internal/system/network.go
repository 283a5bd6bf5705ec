package system

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// UnknownAddress is reported when the public address cannot be discovered
const UnknownAddress = "unknown"

// PublicAddressTimeout bounds each echo-endpoint request
const PublicAddressTimeout = 3 * time.Second

// DefaultEchoEndpoints return the caller's address as plain text
var DefaultEchoEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// Network handles network operations
type Network struct {
	runner    CommandRunner
	client    *http.Client
	endpoints []string
	// listen is swapped in tests to simulate bind results
	listen func(network, address string) (net.Listener, error)
}

// NewNetwork creates a new Network instance
func NewNetwork(runner CommandRunner) *Network {
	return &Network{
		runner:    runner,
		client:    &http.Client{Timeout: PublicAddressTimeout},
		endpoints: DefaultEchoEndpoints,
		listen:    net.Listen,
	}
}

// WithEchoEndpoints overrides the public address endpoints
func (n *Network) WithEchoEndpoints(endpoints ...string) *Network {
	n.endpoints = endpoints
	return n
}

// ListeningPorts returns the TCP ports with a listening socket, read from ss.
func (n *Network) ListeningPorts(ctx context.Context) (map[int]bool, error) {
	output, err := n.runner.Run(ctx, "ss", "-Htln")
	if err != nil {
		return nil, fmt.Errorf("failed to list listening sockets: %w", err)
	}
	return parseListeningPorts(output), nil
}

// parseListeningPorts reads the local address column of `ss -Htln`.
// Local addresses look like 0.0.0.0:22, [::]:22, *:22 or 127.0.0.53%lo:53.
func parseListeningPorts(output string) map[int]bool {
	ports := make(map[int]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		local := fields[3]
		idx := strings.LastIndex(local, ":")
		if idx < 0 {
			continue
		}
		port, err := strconv.Atoi(local[idx+1:])
		if err != nil {
			continue
		}
		ports[port] = true
	}
	return ports
}

// IsPortFree reports whether nothing listens on the TCP port. It asks ss
// first and falls back to trying the bind itself.
func (n *Network) IsPortFree(ctx context.Context, port int) bool {
	if ports, err := n.ListeningPorts(ctx); err == nil {
		return !ports[port]
	}

	ln, err := n.listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// FreePorts filters candidates down to the ports nothing listens on
func (n *Network) FreePorts(ctx context.Context, candidates []int) []int {
	listening, err := n.ListeningPorts(ctx)

	var free []int
	for _, port := range candidates {
		if err == nil {
			if !listening[port] {
				free = append(free, port)
			}
			continue
		}
		if n.IsPortFree(ctx, port) {
			free = append(free, port)
		}
	}
	return free
}

// PublicAddress asks the echo endpoints in order and returns the first
// parsable IP, or UnknownAddress.
func (n *Network) PublicAddress(ctx context.Context) string {
	for _, endpoint := range n.endpoints {
		if ip := n.fetchAddress(ctx, endpoint); ip != "" {
			return ip
		}
	}
	return UnknownAddress
}

func (n *Network) fetchAddress(ctx context.Context, endpoint string) string {
	ctx, cancel := context.WithTimeout(ctx, PublicAddressTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return ""
	}
	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// GetLocalIP returns the local non-loopback IP address
func (n *Network) GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to get interface addresses: %w", err)
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("no local IP address found")
}

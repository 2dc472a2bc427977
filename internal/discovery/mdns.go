// Package discovery finds relay servers on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_bodymap._tcp"

// Server is a relay found on the network.
type Server struct {
	Instance string
	Host     string
	Addr     string // host:port
	Info     []string
}

// URL returns the http base URL of the relay.
func (s Server) URL() string {
	return "http://" + s.Addr
}

// Advertise announces a relay listening on port. Shut the returned server
// down to withdraw the announcement.
func Advertise(instance string, port int, info ...string) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(info) == 0 {
		info = []string{"bodymap relay"}
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mDNS server: %w", err)
	}
	return server, nil
}

// Lookup browses for relays until timeout or ctx ends and returns every
// IPv4 entry found.
func Lookup(ctx context.Context, timeout time.Duration) ([]Server, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() {
		errc <- mdns.Query(params)
		close(entries)
	}()

	var found []Server
	seen := make(map[string]bool)
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return found, <-errc
			}
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			addr := fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)
			if seen[addr] {
				continue
			}
			seen[addr] = true
			found = append(found, Server{
				Instance: instanceName(e.Name),
				Host:     e.Host,
				Addr:     addr,
				Info:     e.InfoFields,
			})
		case <-ctx.Done():
			go func() {
				for range entries {
				}
			}()
			return found, ctx.Err()
		}
	}
}

// instanceName strips the service suffix from a full mDNS entry name.
func instanceName(name string) string {
	if i := strings.Index(name, "."+ServiceType); i > 0 {
		return strings.ReplaceAll(name[:i], `\ `, " ")
	}
	return name
}

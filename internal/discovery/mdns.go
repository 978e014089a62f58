// ABOUTME: mDNS discovery of the render service
// ABOUTME: Browses the LAN for _slidecast-render._tcp endpoints
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

// renderServiceType is the mDNS service the render daemon advertises.
const renderServiceType = "_slidecast-render._tcp"

// ServiceInfo describes a discovered render service.
type ServiceInfo struct {
	Name string
	Host string
	Port int
}

// Manager browses for render services on the local network.
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	services chan *ServiceInfo
}

// NewManager creates a discovery manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		services: make(chan *ServiceInfo, 10),
	}
}

// Browse starts searching for render services in the background.
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously queries until the manager is stopped.
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}

				service := &ServiceInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Printf("Discovered render service: %s at %s:%d",
					service.Name, service.Host, service.Port)

				select {
				case m.services <- service:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: renderServiceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
			time.Sleep(time.Second)
		}
		close(entries)
	}
}

// Services returns the channel of discovered render services.
func (m *Manager) Services() <-chan *ServiceInfo {
	return m.services
}

// Stop stops the discovery manager.
func (m *Manager) Stop() {
	m.cancel()
}

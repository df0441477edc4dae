package telemetry

import (
	"context"
	"net"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// buildResource assembles the OpenTelemetry resource attached to every span
// the optimizer emits. service.name defaults to "steelcut-optimizer" (see
// Config); host.name carries the resolved host IP so traces from replicated
// workers can be told apart behind a load balancer.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	hostIP := getHostIP()

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}

	if hostIP != "" {
		attrs = append(attrs, semconv.HostName(hostIP))
	}

	// Operator-supplied attributes from OTEL_RESOURCE_ATTRIBUTES.
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// getHostIP resolves the hostname to an IP address, preferring IPv4.
// Returns an empty string when nothing usable is found.
func getHostIP() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	addrs, err := net.LookupIP(hostname)
	if err != nil {
		// Containers often have hostnames with no DNS entry; fall back to
		// scanning the interfaces directly.
		return getFirstNonLoopbackIP()
	}

	for _, addr := range addrs {
		if ipv4 := addr.To4(); ipv4 != nil && !ipv4.IsLoopback() {
			return ipv4.String()
		}
	}

	for _, addr := range addrs {
		if !addr.IsLoopback() {
			return addr.String()
		}
	}

	return getFirstNonLoopbackIP()
}

// getFirstNonLoopbackIP walks the network interfaces and returns the first
// address on an interface that is up and not a loopback.
func getFirstNonLoopbackIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
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
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() {
				continue
			}

			if ipv4 := ip.To4(); ipv4 != nil {
				return ipv4.String()
			}
		}
	}

	return ""
}

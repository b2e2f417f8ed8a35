package server

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// fallbackPorts are probed in order when nothing configures a port.
var fallbackPorts = []int{8000, 8080, 3000, 5173}

// resolvePort picks the port the server will listen on. The application's
// own .env file wins, then the configured port, then the first free
// fallback port.
func resolvePort(appDir, host string, configured int) (int, error) {
	if port := portFromAppEnv(appDir); port > 0 {
		return port, nil
	}

	if configured > 0 {
		return configured, nil
	}

	for _, port := range fallbackPorts {
		if portAvailable(host, port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no free port among %v on %s", fallbackPorts, host)
}

// portFromAppEnv reads PORT, then ST_PORT, from the application's .env.
// Missing or malformed files and values resolve to zero.
func portFromAppEnv(appDir string) int {
	env, err := godotenv.Read(filepath.Join(appDir, ".env"))
	if err != nil {
		return 0
	}

	for _, key := range []string{"PORT", "ST_PORT"} {
		if port := parsePort(env[key]); port > 0 {
			return port
		}
	}

	return 0
}

// parsePort returns zero for anything outside the valid port range.
func parsePort(raw string) int {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0
	}

	return port
}

// portAvailable reports whether the port can currently be bound.
func portAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}

	_ = ln.Close()

	return true
}

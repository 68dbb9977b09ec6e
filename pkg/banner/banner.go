package banner

import "fmt"

const banner = `
████████╗██╗  ██╗██████╗ ███████╗ █████╗ ██████╗  ██████╗ █████╗ ███████╗████████╗
╚══██╔══╝██║  ██║██╔══██╗██╔════╝██╔══██╗██╔══██╗██╔════╝██╔══██╗██╔════╝╚══██╔══╝
   ██║   ███████║██████╔╝█████╗  ███████║██║  ██║██║     ███████║███████╗   ██║
   ██║   ██╔══██║██╔══██╗██╔══╝  ██╔══██║██║  ██║██║     ██╔══██║╚════██║   ██║
   ██║   ██║  ██║██║  ██║███████╗██║  ██║██████╔╝╚██████╗██║  ██║███████║   ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═════╝  ╚═════╝╚═╝  ╚═╝╚══════╝   ╚═╝
`

// Print writes the startup banner and runtime info to stdout.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /v1/ws    - WebSocket entry point (action frames)")
	fmt.Println("GET /healthz  - liveness probe")
	fmt.Println("GET /metrics  - Prometheus metrics")
	fmt.Println()
}

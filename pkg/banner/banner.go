package banner

import (
	"fmt"

	"anonchat/pkg/config"
)

const banner = `
 █████╗ ███╗   ██╗ ██████╗ ███╗   ██╗ ██████╗██╗  ██╗ █████╗ ████████╗
██╔══██╗████╗  ██║██╔═══██╗████╗  ██║██╔════╝██║  ██║██╔══██╗╚══██╔══╝
███████║██╔██╗ ██║██║   ██║██╔██╗ ██║██║     ███████║███████║   ██║
██╔══██║██║╚██╗██║██║   ██║██║╚██╗██║██║     ██╔══██║██╔══██║   ██║
██║  ██║██║ ╚████║╚██████╔╝██║ ╚████║╚██████╗██║  ██║██║  ██║   ██║
╚═╝  ╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print renders the startup banner with the effective runtime settings.
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:   %s\n", source)
	}

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/users' -d '{\"username\":\"ghost\",\"password\":\"...\"}'")
	fmt.Println("curl -H 'Authorization: Bearer <token>' 'http://<host>:<port>/v1/conversations'")
	fmt.Println("websocat 'ws://<host>:<port>/v1/feed?conversation=<id>&token=<token>'")

	fmt.Println("\n== Production? =================================================")
	if cfg != nil && cfg.Auth.JWTSecret != "" {
		fmt.Println("- JWT secret: configured")
	} else {
		fmt.Println("- JWT secret: MISSING (tokens will not survive a restart)")
	}
	if cfg != nil && cfg.Feed.Redis.Addr != "" {
		fmt.Printf("- Feed fanout: redis (%s)\n", cfg.Feed.Redis.Addr)
	} else {
		fmt.Println("- Feed fanout: in-process only (single node)")
	}
	if cfg != nil && cfg.Notify.Telegram.BotToken != "" {
		fmt.Println("- Notifications: telegram")
	} else {
		fmt.Println("- Notifications: disabled")
	}
	if cfg != nil && cfg.Retention.Enabled {
		fmt.Printf("- Retention: enabled (cron=%s period=%s)\n", cfg.Retention.Cron, cfg.Retention.Period)
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}

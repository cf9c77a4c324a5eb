// tanyactl is the operator CLI: it talks to the tanyad API for ticket
// queries, logs and the live event stream, and validates config files
// locally.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanya-io/tanya/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: tanyactl tickets <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList(os.Args[3:])
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: tanyactl tickets show <code>")
				os.Exit(1)
			}
			cmdTicketsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "logs":
		cmdLogs(os.Args[2:])
	case "events":
		cmdEvents()
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: tanyactl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdTicketsList(args []string) {
	fs := flag.NewFlagSet("tickets list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (Pending|Locked|Replied)")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *status != "" {
		query += "&status=" + *status
	}

	body, err := apiGet("/api/tickets" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var tickets []map[string]any
	json.Unmarshal(body, &tickets)
	for _, t := range tickets {
		agent := t["agent_display"]
		if agent == nil {
			agent = ""
		}
		fmt.Printf("%-14s %-8s %-12s %s\n", t["code"], t["status"], agent, t["question"])
	}
}

func cmdTicketsShow(code string) {
	body, err := apiGet("/api/tickets/" + code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	level := fs.String("level", "", "Minimum level (info|warn|error)")
	limit := fs.Int("limit", 100, "Max records")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *level != "" {
		query += "&level=" + *level
	}

	body, err := apiGet("/api/logs" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var records []map[string]any
	json.Unmarshal(body, &records)
	for _, r := range records {
		fmt.Printf("%s %-5s %s\n", r["time"], r["level"], r["message"])
	}
}

// cmdEvents tails the lifecycle event stream until interrupted.
func cmdEvents() {
	base := envOr("TANYA_API_URL", "http://localhost:8080")
	url := "ws" + strings.TrimPrefix(base, "http") + "/api/events"

	header := http.Header{}
	if key := os.Getenv("TANYA_API_KEY"); key != "" {
		header.Set("Authorization", "Bearer "+key)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		conn.Close()
	}()

	fmt.Fprintln(os.Stderr, "streaming events (ctrl-c to stop)")
	for {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		line := fmt.Sprintf("%s %-10s %s", ev["time"], ev["kind"], ev["ticket_code"])
		if agent, ok := ev["agent"].(string); ok && agent != "" {
			line += " agent=" + agent
		}
		if reason, ok := ev["reason"].(string); ok && reason != "" {
			line += " reason=" + reason
		}
		fmt.Println(line)
	}
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	base := envOr("TANYA_API_URL", "http://localhost:8080")
	url := base + path

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if key := os.Getenv("TANYA_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("tanyactl — consultation bot management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                Check daemon health")
	fmt.Println("  tickets list          List tickets (--status, --limit)")
	fmt.Println("  tickets show <code>   Show ticket details")
	fmt.Println("  logs                  Recent daemon logs (--level, --limit)")
	fmt.Println("  events                Tail the live ticket event stream")
	fmt.Println("  config validate <p>   Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  TANYA_API_URL   Daemon URL (default: http://localhost:8080)")
	fmt.Println("  TANYA_API_KEY   API key for authentication")
}

// Command agentctl-target is a minimal long-running program with the agent
// installed. Start it, then use `agentctl list` and `agentctl start` on it.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"agentctl/internal/agent"
	"agentctl/internal/config"
	"agentctl/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file")
	name := flag.String("name", "agentctl-target", "Name shown by `agentctl list`")
	eager := flag.Bool("eager", false, "Open the control socket at startup instead of on attach")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	a, err := agent.Install(agent.Options{
		Dir:     cfg.RuntimeDir,
		Display: *name,
		Addr:    cfg.AgentAddr,
		Eager:   *eager,
		Logger:  logging.New(cfg.Log, os.Stderr),
	})
	if err != nil {
		log.Fatalf("install agent: %v", err)
	}
	log.Printf("Agent installed (pid %d). Press Ctrl+C to stop.", a.PID())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Printf("Stopping...")
	if err := a.Close(); err != nil {
		log.Fatalf("error removing agent: %v", err)
	}
	log.Printf("Stopped.")
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/petalpost/petalpost/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "issue-admin-token",
		Description: "Issue a bearer token for the admin console",
		Run:         internal.IssueAdminToken,
	},
	{
		Name:        "generate-secret",
		Description: "Generate a random 256-bit secret",
		Run:         internal.GenerateSecret,
	},
	{
		Name:        "sign-itn",
		Description: "Sign a sandbox payment notification for local replay",
		Run:         internal.SignSandboxITN,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		userID       string
		roles        string
		ttl          string
		reference    string
		payableID    string
		amount       string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&userID, "user-id", "", "Operator ID for tokens")
	flag.StringVar(&roles, "roles", "", "Comma separated roles for tokens")
	flag.StringVar(&ttl, "ttl", "", "Token lifetime, e.g. 8h")
	flag.StringVar(&reference, "reference", "", "Payment reference for notifications")
	flag.StringVar(&payableID, "payable-id", "", "Invoice or order ID for notifications")
	flag.StringVar(&amount, "amount", "", "Amount for notifications")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	env := map[string]string{
		"USER_ID":    userID,
		"ROLES":      roles,
		"TOKEN_TTL":  ttl,
		"REFERENCE":  reference,
		"PAYABLE_ID": payableID,
		"AMOUNT":     amount,
	}
	for k, v := range env {
		if v != "" {
			os.Setenv(k, v)
		}
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}

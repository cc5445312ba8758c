package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	gateway := os.Getenv("PROVENANCE_GATEWAY_URL")
	if gateway == "" {
		gateway = "http://localhost:8080"
	}

	switch os.Args[1] {
	case "create":
		cmdCreate(gateway)
	case "transition":
		cmdTransition(gateway)
	case "log":
		cmdLog(gateway)
	case "logs":
		cmdLogsText(gateway)
	case "verify":
		cmdVerify(gateway)
	case "version":
		fmt.Printf("provenance-cli v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Provenance CLI v` + version + `

Usage: provenance-cli <command> [flags]

Commands:
  create      Start a new agent session
  transition  Attempt a transition on an existing session
  log         Fetch an agent session's proof log as JSON
  logs        Fetch an agent session's formatted log as text
  verify      Verify a proof chain against a public key
  version     Print version
  help        Show this help

Environment:
  PROVENANCE_GATEWAY_URL   Gateway URL (default: http://localhost:8080)

Examples:
  provenance-cli create --agent agent-1 --states IDLE,INIT,GOAL_PARSE,PLANNING,EXECUTING,VALIDATING,REPORTING,COMPLETED,ERROR,TERMINATED --initial IDLE
  provenance-cli transition --session <id> --to INIT --action start
  provenance-cli log --session <id>
  provenance-cli logs --session <id>
  provenance-cli verify --file chain.json`)
}

func cmdCreate(gateway string) {
	var agentID, statesCSV, initial string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--agent":
			i++
			if i < len(args) {
				agentID = args[i]
			}
		case "--states":
			i++
			if i < len(args) {
				statesCSV = args[i]
			}
		case "--initial":
			i++
			if i < len(args) {
				initial = args[i]
			}
		}
	}
	if statesCSV == "" || initial == "" {
		fmt.Fprintln(os.Stderr, "error: --states and --initial are required")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"agentId":      agentID,
		"states":       splitCSV(statesCSV),
		"initialState": initial,
	})
	postJSON(gateway+"/v1/agents", body)
}

func cmdTransition(gateway string) {
	var sessionID, to, action, paramsJSON string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--session":
			i++
			if i < len(args) {
				sessionID = args[i]
			}
		case "--to":
			i++
			if i < len(args) {
				to = args[i]
			}
		case "--action":
			i++
			if i < len(args) {
				action = args[i]
			}
		case "--params":
			i++
			if i < len(args) {
				paramsJSON = args[i]
			}
		}
	}
	if sessionID == "" || to == "" {
		fmt.Fprintln(os.Stderr, "error: --session and --to are required")
		os.Exit(1)
	}

	var params map[string]interface{}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --params JSON: %v\n", err)
			os.Exit(1)
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"to":     to,
		"action": action,
		"params": params,
	})
	postJSON(fmt.Sprintf("%s/v1/agents/%s/transitions", gateway, sessionID), body)
}

func cmdLog(gateway string) {
	var sessionID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		if args[i] == "--session" {
			i++
			if i < len(args) {
				sessionID = args[i]
			}
		}
	}
	if sessionID == "" {
		fmt.Fprintln(os.Stderr, "error: --session is required")
		os.Exit(1)
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/agents/%s/log", gateway, sessionID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func cmdLogsText(gateway string) {
	var sessionID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		if args[i] == "--session" {
			i++
			if i < len(args) {
				sessionID = args[i]
			}
		}
	}
	if sessionID == "" {
		fmt.Fprintln(os.Stderr, "error: --session is required")
		os.Exit(1)
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/agents/%s/logs", gateway, sessionID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "gateway returned %d: %s\n", resp.StatusCode, string(data))
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func cmdVerify(gateway string) {
	var file string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		if args[i] == "--file" {
			i++
			if i < len(args) {
				file = args[i]
			}
		}
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "error: --file is required (JSON with \"proofs\" and \"publicKeyHex\")")
		os.Exit(1)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	postJSON(gateway+"/v1/verify", data)
}

func postJSON(url string, body []byte) {
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "gateway returned %d: %s\n", resp.StatusCode, string(data))
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

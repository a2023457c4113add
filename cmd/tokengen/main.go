// Package main provides a CLI tool for generating secrets and test
// tokens for local development. Tokens minted here only verify against a
// server started with the same secret.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/oiblz/tally/internal/token"
	"github.com/oiblz/tally/pkg/domain"
	"github.com/oiblz/tally/pkg/secrets"
)

const devSecret = "dev-secret-change-me-locally"

type tokenOutput struct {
	Token string            `json:"token"`
	Type  string            `json:"type"`
	Usage map[string]string `json:"usage"`
}

func main() {
	secretCmd := flag.NewFlagSet("secret", flag.ExitOnError)
	pendingCmd := flag.NewFlagSet("pending", flag.ExitOnError)
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)

	pendingID := pendingCmd.Int64("id", 1, "Proposal id the token is bound to")
	pendingSecret := pendingCmd.String("secret", devSecret, "Signing secret (TALLY_SECRET)")
	pendingJSON := pendingCmd.Bool("json", false, "Output as JSON")

	sessionID := sessionCmd.Int64("id", 1, "Proposal id the session came from")
	sessionWho := sessionCmd.String("who", "a", "Identity the session belongs to (a or b)")
	sessionSecret := sessionCmd.String("secret", devSecret, "Signing secret (TALLY_SECRET)")
	sessionJSON := sessionCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "secret":
		_ = secretCmd.Parse(os.Args[2:])
		generateSecret()
	case "pending":
		_ = pendingCmd.Parse(os.Args[2:])
		generatePending(*pendingID, *pendingSecret, *pendingJSON)
	case "session":
		_ = sessionCmd.Parse(os.Args[2:])
		generateSession(*sessionID, *sessionWho, *sessionSecret, *sessionJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - generate secrets and test tokens for the tally API

WARNING: tokens minted with the default secret only work against a
         server started with that same secret. Local use only.

Usage:
  tokengen <command> [flags]

Commands:
  secret    Generate a random TALLY_SECRET
  pending   Mint a pending token bound to a proposal id
  session   Mint a session token for an identity

Examples:
  tokengen secret
  tokengen pending -id 3
  tokengen session -who b -secret "$TALLY_SECRET"

Use "tokengen <command> -h" for more information about a command.`)
}

func generateSecret() {
	secret, err := secrets.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating secret: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(secret)
}

func generatePending(id int64, secret string, jsonOutput bool) {
	codec := mustCodec(secret)
	emit(codec.IssuePending(id), "pending_token", jsonOutput, map[string]string{
		"header":      "Authorization: <token>",
		"proposal_id": strconv.FormatInt(id, 10),
	})
}

func generateSession(id int64, who, secret string, jsonOutput bool) {
	identity, err := domain.ParseIdentity(who)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid identity %q: must be a or b\n", who)
		os.Exit(1)
	}

	codec := mustCodec(secret)
	emit(codec.IssueSession(id, identity), "session_token", jsonOutput, map[string]string{
		"header":   "Authorization: <token>",
		"identity": identity.String(),
	})
}

func mustCodec(secret string) *token.Codec {
	codec, err := token.New(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building codec: %v\n", err)
		os.Exit(1)
	}
	return codec
}

func emit(wire, kind string, jsonOutput bool, usage map[string]string) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tokenOutput{Token: wire, Type: kind, Usage: usage}); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(wire)
}

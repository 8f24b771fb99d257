package commands

import (
	"lglsync/src/internal/auth"
)

// AuthCommand generates admin API credentials. The heavy lifting lives
// in the auth package so the hash parameters stay next to the verifier.
type AuthCommand struct {
	gen *auth.GeneratorCommand
}

// NewAuthCommand creates a new auth command
func NewAuthCommand() *AuthCommand {
	return &AuthCommand{gen: auth.NewGeneratorCommand()}
}

func (c *AuthCommand) Execute(args []string) error {
	return c.gen.Execute(args)
}

func (c *AuthCommand) Description() string {
	return "Generate admin API credentials (password hashes, bearer tokens)"
}

func (c *AuthCommand) Help() string {
	return `Auth Command - Generate admin API credentials

Usage:
  lglsync auth [options]

The admin API supports two authentication schemes:
  - Basic Auth: Username/password with Argon2id hashing
  - Bearer Token: Random cryptographic tokens

Options:
  -u <name>     Username for password hash generation
  -p <pass>     Password (will prompt if not provided)
  -t            Generate random bearer token
  -l <bytes>    Token length in bytes (default: 32)

Examples:
  # Generate Argon2id password hash for a user
  lglsync auth -u admin

  # Generate a 64-byte bearer token
  lglsync auth -t -l 64

Output:
  The command outputs configuration snippets ready to paste into
  lglsync.toml and the raw credential values for external auth files.

Security Notes:
  - Serve the admin API over a trusted network or a TLS-terminating proxy
  - Use strong passwords (12+ characters with mixed case, numbers, symbols)
  - Store credentials securely and never commit them to version control
`
}

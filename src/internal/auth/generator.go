package auth

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"lglsync/src/internal/core"

	"golang.org/x/term"
)

// GeneratorCommand produces admin API credentials: argon2id password
// hashes for basic auth and random bearer tokens.
type GeneratorCommand struct {
	output io.Writer
	errOut io.Writer
}

func NewGeneratorCommand() *GeneratorCommand {
	return &GeneratorCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
}

func (g *GeneratorCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("auth", flag.ContinueOnError)
	cmd.SetOutput(g.errOut)

	var (
		username = cmd.String("u", "", "Username for basic auth")
		password = cmd.String("p", "", "Password to hash (will prompt if not provided)")
		genToken = cmd.Bool("t", false, "Generate random bearer token")
		tokenLen = cmd.Int("l", core.DefaultTokenLength, "Token length in bytes")
	)

	cmd.Usage = func() {
		fmt.Fprintln(g.errOut, "Generate admin API credentials")
		fmt.Fprintln(g.errOut, "\nUsage: lglsync auth [options]")
		fmt.Fprintln(g.errOut, "\nExamples:")
		fmt.Fprintln(g.errOut, "  # Generate Argon2id hash for user")
		fmt.Fprintln(g.errOut, "  lglsync auth -u admin")
		fmt.Fprintln(g.errOut, "  ")
		fmt.Fprintln(g.errOut, "  # Generate 64-byte bearer token")
		fmt.Fprintln(g.errOut, "  lglsync auth -t -l 64")
		fmt.Fprintln(g.errOut, "\nOptions:")
		cmd.PrintDefaults()
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}

	if *genToken {
		return g.generateToken(*tokenLen)
	}

	if *username == "" {
		cmd.Usage()
		return fmt.Errorf("username required for password hash generation")
	}

	return g.generatePasswordHash(*username, *password)
}

func (g *GeneratorCommand) generatePasswordHash(username, password string) error {
	if password == "" {
		pass1 := g.promptPassword("Enter password: ")
		pass2 := g.promptPassword("Confirm password: ")
		if pass1 != pass2 {
			return fmt.Errorf("passwords don't match")
		}
		password = pass1
	}

	phcHash, err := GenerateHash(password)
	if err != nil {
		return err
	}

	fmt.Fprintln(g.output, "\n# TOML Configuration (add to lglsync.toml):")
	fmt.Fprintln(g.output, "[[server.auth.basic_auth.users]]")
	fmt.Fprintf(g.output, "username = %q\n", username)
	fmt.Fprintf(g.output, "password_hash = %q\n\n", phcHash)

	fmt.Fprintln(g.output, "# Users File Format (for external auth file):")
	fmt.Fprintf(g.output, "%s:%s\n", username, phcHash)

	return nil
}

func (g *GeneratorCommand) generateToken(length int) error {
	if length < 16 {
		fmt.Fprintln(g.errOut, "Warning: tokens < 16 bytes are cryptographically weak")
	}
	if length > 512 {
		return fmt.Errorf("token length exceeds maximum (512 bytes)")
	}

	token := make([]byte, length)
	if _, err := rand.Read(token); err != nil {
		return fmt.Errorf("failed to generate random bytes: %w", err)
	}

	b64 := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(token)
	hex := fmt.Sprintf("%x", token)

	fmt.Fprintln(g.output, "\n# TOML Configuration (add to lglsync.toml):")
	fmt.Fprintf(g.output, "tokens = [%q]\n\n", b64)

	fmt.Fprintln(g.output, "# Generated Token:")
	fmt.Fprintf(g.output, "Base64: %s\n", b64)
	fmt.Fprintf(g.output, "Hex:    %s\n", hex)

	return nil
}

func (g *GeneratorCommand) promptPassword(prompt string) string {
	fmt.Fprint(g.errOut, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(g.errOut)
	if err != nil {
		fmt.Fprintf(g.errOut, "Failed to read password: %v\n", err)
		os.Exit(1)
	}
	return string(password)
}

package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

// HMAC key should be at least as long as the hash output (SHA-256)
const minKeyBytes = 32

// Print random key for the SECRET_KEY option
func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gensecret: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	size := fs.IntP("bytes", "n", minKeyBytes, "Key length in bytes")
	encoding := fs.StringP("encoding", "e", "hex", "Key encoding: hex or base64")
	dotenv := fs.Bool("dotenv", false, "Print as SECRET_KEY=<key> line for .env file")

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *size < minKeyBytes {
		return fmt.Errorf("key must be at least %d bytes, got %d", minKeyBytes, *size)
	}

	var encode func([]byte) string
	switch *encoding {
	case "hex":
		encode = hex.EncodeToString
	case "base64":
		encode = base64.RawURLEncoding.EncodeToString
	default:
		return fmt.Errorf("unknown encoding %q", *encoding)
	}

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("error while generating secret key: %w", err)
	}

	key := encode(b)
	if *dotenv {
		key = "SECRET_KEY=" + key
	}

	_, err := fmt.Fprintln(out, key)
	return err
}

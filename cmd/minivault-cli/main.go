package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"minivault/internal/client"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "minivault-cli:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var (
		baseURL  string
		noStream bool
	)
	cmd := &cobra.Command{
		Use:   "minivault-cli [prompt]",
		Short: "Send a prompt to a running minivault server",
		Example: `  minivault-cli "Write a haiku"
  minivault-cli "Explain AI" --no-stream
  echo "Write a haiku" | minivault-cli`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if len(args) == 0 {
				p, err := readPrompt(stdin)
				if err != nil {
					return err
				}
				prompt = p
			}
			return client.New(baseURL).Ask(cmd.Context(), prompt, !noStream, stdout)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", envOr("MINIVAULT_URL", client.DefaultBaseURL), "minivault base URL (env MINIVAULT_URL)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full JSON response instead of printing chunks as they arrive")
	return cmd
}

// readPrompt reads one line from r.
func readPrompt(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", errors.New("no prompt given")
	}
	return line, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pashusagar/pashusagar-cli/internal/api"
	"github.com/pashusagar/pashusagar-cli/internal/config"
	"github.com/pashusagar/pashusagar-cli/internal/storage"
	"github.com/pashusagar/pashusagar-cli/pkg/logger"
)

const loginTimeout = 15 * time.Second

// LoginCommand prompts for credentials, exchanges them for an access token and
// stores the token under the PashuSagar home directory.
func LoginCommand(cfg *config.Config) error {
	username, password, err := promptCredentials(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	client := api.New(cfg.ServerURL)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	token, err := client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := storage.SaveToken(cfg.AccessKey, token); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	logger.Infof("Logged in as %s", username)
	logger.Debugf("Access token stored at %s", cfg.AccessKey)
	return nil
}

func promptCredentials(in io.Reader, out io.Writer) (username, password string, err error) {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Username: ")
	username, err = readLine(reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}

	fmt.Fprint(out, "Password: ")
	password, err = readLine(reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}
	return username, password, nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

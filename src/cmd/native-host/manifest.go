package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const hostName = "com.gemini.assistant"

// Manifest is the browser's native messaging host description.
type Manifest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Path           string   `json:"path"`
	Type           string   `json:"type"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type manifestOptions struct {
	extensionID string
	dir         string
	hostPath    string
}

func newInstallManifestCmd() *cobra.Command {
	opts := &manifestOptions{}
	cmd := &cobra.Command{
		Use:           "install-manifest",
		Short:         "Write the native messaging host manifest for the browser extension",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := installManifest(*opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
			if runtime.GOOS == "windows" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Register it with:\n  reg add HKCU\\Software\\Google\\Chrome\\NativeMessagingHosts\\%s /ve /t REG_SZ /d \"%s\" /f\n", hostName, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.extensionID, "extension-id", "", "ID of the browser extension allowed to call the host")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory to write the manifest to (default: the browser's per-user location)")
	cmd.Flags().StringVar(&opts.hostPath, "host-path", "", "Absolute path of the host executable (default: this executable)")
	_ = cmd.MarkFlagRequired("extension-id")
	return cmd
}

func installManifest(opts manifestOptions) (string, error) {
	id := strings.TrimSpace(opts.extensionID)
	if id == "" || strings.ContainsAny(id, "/: ") {
		return "", fmt.Errorf("invalid extension id %q", opts.extensionID)
	}

	hostPath := opts.hostPath
	if hostPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve host executable: %w", err)
		}
		hostPath = exe
	}
	hostPath, err := filepath.Abs(hostPath)
	if err != nil {
		return "", err
	}

	dir := opts.dir
	if dir == "" {
		if dir, err = defaultManifestDir(hostPath); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(Manifest{
		Name:           hostName,
		Description:    "Launches the Gemini screen assistant",
		Path:           hostPath,
		Type:           "stdio",
		AllowedOrigins: []string{"chrome-extension://" + id + "/"},
	}, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, hostName+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// defaultManifestDir is Chrome's per-user host directory. Windows looks the
// manifest up through the registry, so it stays next to the host.
func defaultManifestDir(hostPath string) (string, error) {
	if runtime.GOOS == "windows" {
		return filepath.Dir(hostPath), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "NativeMessagingHosts"), nil
	}
	return filepath.Join(home, ".config", "google-chrome", "NativeMessagingHosts"), nil
}

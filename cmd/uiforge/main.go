// Package main is the entry point for uiforge.
//
// Usage:
//
//	uiforge serve [--config file]         run the HTTP server
//	uiforge render <file|-> [--output ..] sanitize a UI description offline
//	uiforge status [--addr host:port]     check a running server
//	uiforge config init|show              manage the config file
//	uiforge version                       print version
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/uiforge/uiforge/internal/config"
	"github.com/uiforge/uiforge/internal/genui"
	"github.com/uiforge/uiforge/internal/security"
)

const appName = "uiforge"

// version is set at build time.
var version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Generate UI component trees from natural language",
		Long:         appName + " turns a prompt into a sanitized component tree and JSX source, with undo and redo.",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().String("config", "", "config file (default ./uiforge.yaml or $HOME/.config/uiforge/uiforge.yaml)")

	root.AddCommand(
		newServeCmd(),
		newRenderCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s listening on http://%s\n", appName, version, cfg.Server.Addr)
			if err := a.Run(ctx); err != nil {
				return err
			}
			a.logger.Info("stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides server.addr")
	return cmd
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "Sanitize a JSON or YAML UI description and print code, JSON or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			strictMode, _ := cmd.Flags().GetBool("strict")

			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			raw, err := decodeDocument(data, args[0])
			if err != nil {
				return err
			}
			if strictMode {
				v, err := genui.NewStrictValidator()
				if err != nil {
					return err
				}
				if err := v.Validate(raw); err != nil {
					return err
				}
			}

			schema := genui.Sanitize(raw)
			w := cmd.OutOrStdout()
			switch output {
			case "code":
				fmt.Fprintln(w, genui.Generate(schema))
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(schema)
			case "html":
				fmt.Fprint(w, genui.PreviewDocument(schema.Components))
			default:
				return fmt.Errorf("unknown output %q (must be code, json or html)", output)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "code", "output format: code, json or html (a standalone preview page)")
	cmd.Flags().Bool("strict", false, "reject input that violates the component schema instead of pruning it")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// decodeDocument parses JSON, falling back to YAML for .yaml/.yml files and
// for input that is not JSON.
func decodeDocument(data []byte, name string) (any, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		if raw, err := genui.DecodeModelOutput(string(data)); err == nil {
			return raw, nil
		} else if ext == ".json" {
			return nil, err
		}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", genui.ErrMalformedOutput, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", genui.ErrMalformedOutput)
	}
	return normalizeYAML(doc), nil
}

// normalizeYAML converts YAML decoding results to the shapes encoding/json
// produces, so the sanitizer sees the same values for both formats.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the health of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				addr = cfg.Server.Addr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			body, err := fetchHealth(ctx, healthURL(addr))
			if err != nil {
				return fmt.Errorf("%s is not running at %s: %w", appName, addr, err)
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, body, "", "  "); err != nil {
				pretty.Write(body)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is running at %s\n%s\n", appName, addr, strings.TrimSpace(pretty.String()))
			return nil
		},
	}
	cmd.Flags().String("addr", "", "server address (default server.addr from config)")
	return cmd
}

func healthURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/") + "/health"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/health"
}

func fetchHealth(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health returned %s", resp.Status)
	}
	return body, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(configView(cfg))
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// configView is the printable form of the config with the API key masked.
func configView(c *config.Config) map[string]any {
	key := ""
	if c.LLM.APIKey != "" {
		key = security.MaskSecret(c.LLM.APIKey, 4)
	}
	return map[string]any{
		"server": map[string]any{"addr": c.Server.Addr},
		"llm": map[string]any{
			"provider":    c.LLM.Provider,
			"api_key":     key,
			"base_url":    c.LLM.BaseURL,
			"model":       c.ProviderConfig().Model,
			"temperature": c.LLM.Temperature,
			"max_tokens":  c.LLM.MaxTokens,
			"timeout":     c.LLM.Timeout.String(),
		},
		"generation": map[string]any{
			"strict":            c.Generation.Strict,
			"max_prompt_length": c.Generation.MaxPromptLength,
			"blocklist":         c.Generation.Blocklist,
		},
		"ratelimit":   map[string]any{"rps": c.RateLimit.RPS, "burst": c.RateLimit.Burst},
		"diagnostics": map[string]any{"path": c.Diagnostics.Path, "retain": c.Diagnostics.Retain},
		"log":         map[string]any{"level": c.Log.Level, "format": c.Log.Format},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, version)
		},
	}
}

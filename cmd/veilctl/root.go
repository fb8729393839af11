package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries flag values and the lazily built app for one invocation.
type cli struct {
	configPath string
	output     string

	cfg    *config.Config
	logger *slog.Logger
	app    *app
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "veilctl",
		Short:         "Field encryption keys and values",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is fine; existing variables win.
			_ = godotenv.Load()

			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = newLogger(cfg, cmd.ErrOrStderr())
			slog.SetDefault(c.logger)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app != nil {
				return c.app.close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("VEIL_CONFIG"), "config file (or set VEIL_CONFIG)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "output format: text, json")

	root.AddCommand(
		c.versionCmd(),
		c.encryptCmd(),
		c.decryptCmd(),
		c.digestCmd(),
		c.maskCmd(),
		c.keysCmd(),
		c.sweepCmd(),
		c.serveCmd(),
	)
	return root
}

// App builds the components on first use.
func (c *cli) App(cmd *cobra.Command) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := newApp(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// print writes v as JSON, or text via the given function.
func (c *cli) print(w io.Writer, v any, text func(io.Writer)) error {
	if c.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "veilctl version %s\n", version)
		},
	}
}

func (c *cli) encryptCmd() *cobra.Command {
	var slot string
	cmd := &cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Encrypt a value with the active key of a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			out, err := a.pipeline.Crypter().Encrypt(cmd.Context(), args[0], slot)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"slot": slot, "ciphertext": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
	cmd.Flags().StringVarP(&slot, "slot", "s", "", "key slot (required)")
	_ = cmd.MarkFlagRequired("slot")
	return cmd
}

func (c *cli) decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <envelope>",
		Short: "Decrypt an envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			out, err := a.pipeline.Crypter().Decrypt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"plaintext": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
}

func (c *cli) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <plaintext>",
		Short: "Compute the blind-index digest of a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.cfg.Digester()
			if err != nil {
				return err
			}
			out, err := d.Digest(args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"algorithm": string(d.Algorithm()), "digest": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
}

func (c *cli) maskCmd() *cobra.Command {
	var kind, pattern string
	cmd := &cobra.Command{
		Use:   "mask <value>",
		Short: "Mask a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := veil.MaskValue(veil.MaskType(kind), pattern, args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"type": kind, "masked": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "mask type: phone, email, id_card, bank_card, name, custom (required)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "pattern for custom masks, # keeps and * masks")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

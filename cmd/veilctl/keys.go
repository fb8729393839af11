package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/veil/keys"
)

func (c *cli) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and rotate slot keys",
	}
	cmd.AddCommand(c.keysListCmd(), c.keysCurrentCmd(), c.keysHistoryCmd(), c.keysRotateCmd())
	return cmd
}

func (c *cli) keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			slots, err := a.manager.Slots(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string][]string{"slots": slots}, func(w io.Writer) {
				for _, s := range slots {
					fmt.Fprintln(w, s)
				}
			})
		},
	}
}

func (c *cli) keysCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current <slot>",
		Short: "Show the active key of a slot, creating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			k, err := a.manager.GetActiveKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			history, err := a.manager.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range history {
				if m.Version == k.Version {
					return c.print(cmd.OutOrStdout(), m, func(w io.Writer) { writeKeyTable(w, []keys.Metadata{m}) })
				}
			}
			return fmt.Errorf("%w: slot %q version %d", keys.ErrKeyNotFound, args[0], k.Version)
		},
	}
}

func (c *cli) keysHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <slot>",
		Short: "List every key version of a slot, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keys.ValidateSlot(args[0]); err != nil {
				return err
			}
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			history, err := a.manager.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), history, func(w io.Writer) { writeKeyTable(w, history) })
		},
	}
}

func (c *cli) keysRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <slot>",
		Short: "Retire the active key of a slot and install a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			k, err := a.manager.Rotate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{"slot": k.Slot, "version": k.Version}, func(w io.Writer) {
				fmt.Fprintf(w, "Rotated slot %q (version: %d)\n", k.Slot, k.Version)
			})
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Rotate every expired active key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}
			rotated, err := a.manager.Sweep(cmd.Context())
			perr := c.print(cmd.OutOrStdout(), map[string][]string{"rotated": rotated}, func(w io.Writer) {
				if len(rotated) == 0 {
					fmt.Fprintln(w, "No expired keys")
					return
				}
				fmt.Fprintf(w, "Rotated: %s\n", strings.Join(rotated, ", "))
			})
			if err != nil {
				return err
			}
			return perr
		},
	}
}

func writeKeyTable(w io.Writer, history []keys.Metadata) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSLOT\tSTATUS\tEFFECTIVE\tEXPIRES\tREMARK")
	for _, m := range history {
		expires := "-"
		if !m.ExpiresAt.IsZero() {
			expires = m.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.Version, m.Slot, m.Status, m.EffectiveAt.Format(time.RFC3339), expires, m.Remark)
	}
	_ = tw.Flush()
}

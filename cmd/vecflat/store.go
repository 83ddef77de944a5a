package main

import (
	"fmt"

	"github.com/hupe1980/vecflat"
	"github.com/spf13/cobra"
)

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file> <name>",
		Short: "Copy a snapshot file into the configured blob store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closer, err := a.cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			idx, err := vecflat.Load(ctx, args[0], a.cfg.IndexOptions()...)
			if err != nil {
				return err
			}
			defer idx.Close()

			if err := idx.SaveTo(ctx, store, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <name> <file>",
		Short: "Copy a snapshot from the configured blob store into a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closer, err := a.cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			idx, err := vecflat.LoadFrom(ctx, store, args[0], a.cfg.IndexOptions()...)
			if err != nil {
				return err
			}
			defer idx.Close()

			if err := idx.Save(ctx, args[1]); err != nil {
				return err
			}
			n, _ := idx.NTotal()
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %s to %s (%d vectors)\n", args[0], args[1], n)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List snapshot names in the configured blob store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closer, err := a.cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			names, err := store.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

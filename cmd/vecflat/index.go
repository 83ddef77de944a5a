package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/vecflat"
	"github.com/hupe1980/vecflat/persistence"
	"github.com/spf13/cobra"
)

func newCreateCmd(a *app) *cobra.Command {
	var dim int

	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Write an empty index snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := vecflat.New(dim, a.cfg.IndexOptions()...)
			if err != nil {
				return err
			}
			if err := idx.Save(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (dimension %d)\n", args[0], dim)
			return nil
		},
	}
	cmd.Flags().IntVar(&dim, "dim", 0, "vector dimension")
	_ = cmd.MarkFlagRequired("dim")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		input   string
		vectors []string
	)

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Append vectors to an index snapshot",
		Long: `Append vectors given with --vector (comma separated) or read from --input,
one JSON array per line ("-" reads stdin). The snapshot is rewritten atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch := make([][]float32, 0, len(vectors))
			for _, s := range vectors {
				v, err := parseVector(s)
				if err != nil {
					return err
				}
				batch = append(batch, v)
			}
			if input != "" {
				r := cmd.InOrStdin()
				if input != "-" {
					f, err := os.Open(input)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				lines, err := readJSONLines(r)
				if err != nil {
					return err
				}
				batch = append(batch, lines...)
			}
			if len(batch) == 0 {
				return errors.New("no vectors given; use --vector or --input")
			}

			ctx := cmd.Context()
			idx, err := vecflat.Load(ctx, args[0], a.cfg.IndexOptions()...)
			if err != nil {
				return err
			}
			defer idx.Close()

			ids, err := idx.AddVectors(ctx, batch)
			if err != nil {
				return err
			}
			if err := idx.Save(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d vectors (ids %d-%d)\n", len(ids), ids[0], ids[len(ids)-1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON lines file of vectors, - for stdin")
	cmd.Flags().StringArrayVarP(&vectors, "vector", "v", nil, "comma separated vector, repeatable")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		query   string
		k       int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "search <file>",
		Short: "Find the stored vectors with the highest inner product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseVector(query)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			idx, err := vecflat.Load(ctx, args[0], a.cfg.IndexOptions()...)
			if err != nil {
				return err
			}
			defer idx.Close()

			results, err := idx.Search(ctx, q, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(results)
			}
			for _, r := range results {
				fmt.Fprintf(out, "%d\t%g\n", r.ID, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "comma separated query vector")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newInfoCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print the snapshot header without loading vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			st, err := f.Stat()
			if err != nil {
				return err
			}
			h, err := persistence.ReadHeader(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version:     %d\n", h.Version)
			fmt.Fprintf(out, "dimension:   %d\n", h.Dimension)
			fmt.Fprintf(out, "vectors:     %d\n", h.Count)
			fmt.Fprintf(out, "compression: %s\n", h.Compression)
			fmt.Fprintf(out, "size:        %d bytes\n", st.Size())
			return nil
		},
	}
}

func parseVector(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	v := make([]float32, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector %q: %w", s, err)
		}
		v = append(v, float32(x))
	}
	return v, nil
}

func readJSONLines(r io.Reader) ([][]float32, error) {
	var out [][]float32
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var v []float32
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/davidbalbert/miniospf/api"
	"github.com/davidbalbert/miniospf/config"
	"github.com/davidbalbert/miniospf/ospf"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type options struct {
	socket string
	output string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ospfc",
		Short:         "Inspect and control miniospfd",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "", "table", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.socket, "socket", config.DefaultSocket, "path to the miniospfd socket")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "output format (table, yaml), tables on a terminal by default")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show information about the daemon",
	}

	show.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show the daemon's version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(opts, func(c *api.Client) error {
					v, err := c.GetVersion(cmd.Context())
					if err != nil {
						return err
					}

					if opts.format(cmd.OutOrStdout()) == "yaml" {
						return printYAML(cmd.OutOrStdout(), map[string]string{"version": v})
					}

					_, err = fmt.Fprintf(cmd.OutOrStdout(), "miniospfd %s\n", v)
					return err
				})
			},
		},
		statusCommand(opts, "status", "Show the router and its link", printStatus, func(st *ospf.Status) any { return st }),
		statusCommand(opts, "neighbors", "Show neighbors on the link", printNeighbors, func(st *ospf.Status) any {
			if st.Link == nil {
				return []ospf.NeighborStatus{}
			}
			return st.Link.Neighbors
		}),
		statusCommand(opts, "database", "Show the link state database", printDatabase, func(st *ospf.Status) any { return st.LSAs }),
	)

	root.AddCommand(show)

	root.AddCommand(&cobra.Command{
		Use:   "monitor",
		Short: "Print the daemon's status every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(c *api.Client) error {
				return monitor(cmd.Context(), c, cmd.OutOrStdout(), opts.format(cmd.OutOrStdout()))
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "shutdown",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(c *api.Client) error {
				return c.Shutdown(cmd.Context())
			})
		},
	})

	return root
}

func withClient(opts *options, f func(c *api.Client) error) error {
	c, err := api.NewClient(opts.socket)
	if err != nil {
		return err
	}
	defer c.Close()

	return f(c)
}

// format resolves the default output format: tables for people, YAML for
// pipes.
func (o *options) format(w io.Writer) string {
	if o.output != "" {
		return o.output
	}

	if isTerminal(w) {
		return "table"
	}
	return "yaml"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func statusCommand(opts *options, name, short string, table func(io.Writer, *ospf.Status) error, view func(*ospf.Status) any) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(opts, func(c *api.Client) error {
				st, err := c.GetStatus(cmd.Context())
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if opts.format(w) == "yaml" {
					return printYAML(w, view(st))
				}

				return paged(w, func(w io.Writer) error {
					return table(w, st)
				})
			})
		},
	}
}

// paged runs f with a pager when both stdin and w are terminals.
func paged(w io.Writer, f func(io.Writer) error) error {
	out, ok := w.(*os.File)
	if !ok || !isTerminal(out) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return f(w)
	}

	_, height, err := term.GetSize(int(out.Fd()))
	if err != nil {
		return f(w)
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return f(w)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	p := newPager(out, os.Stdin, height)
	err = f(p)
	if errors.Is(err, errQuit) {
		return nil
	} else if err != nil {
		return err
	}

	return p.Flush()
}

func monitor(ctx context.Context, c *api.Client, w io.Writer, format string) error {
	stream, err := c.WatchStatus(ctx)
	if err != nil {
		return err
	}

	for first := true; ; first = false {
		st, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		if format == "yaml" {
			if !first {
				fmt.Fprintln(w, "---")
			}
			if err := printYAML(w, st); err != nil {
				return err
			}
			continue
		}

		if !first {
			fmt.Fprintln(w)
		}
		if err := printStatus(w, st); err != nil {
			return err
		}
		if st.Link != nil && len(st.Link.Neighbors) > 0 {
			fmt.Fprintln(w)
			if err := printNeighbors(w, st); err != nil {
				return err
			}
		}
	}
}

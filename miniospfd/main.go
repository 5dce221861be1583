package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davidbalbert/miniospf/api"
	"github.com/davidbalbert/miniospf/config"
	"github.com/davidbalbert/miniospf/ospf"
	"github.com/davidbalbert/miniospf/system"
	"github.com/davidbalbert/miniospf/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "miniospfd",
		Short:         "Announce a host's prefixes into an OSPF area",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), conf)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to miniospfd.yaml")
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			b, err := conf.YAML()
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.New(cmd.Flags(), configPath)
	if err != nil {
		return nil, err
	}

	return config.Load(v)
}

func listen(v ospf.Version) (ospf.Conn, error) {
	if v == ospf.Version2 {
		return transport.Listen4()
	}
	return transport.Listen6()
}

func run(ctx context.Context, conf *config.Config) error {
	logger, err := conf.Log.NewLogger()
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)

	log.WithFields(logrus.Fields{"version": version, "uid": os.Getuid()}).Info("starting miniospfd")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor, err := system.NewInterfaceMonitor()
	if err != nil {
		return err
	}

	ospfConf, err := conf.OSPF(monitor)
	if err != nil {
		return err
	}

	conn, err := listen(ospfConf.Version)
	if err != nil {
		return err
	}

	instance, err := ospf.NewInstance(ospfConf, conn, monitor, ospf.WithLogger(log))
	if err != nil {
		conn.Close()
		return err
	}

	log.WithFields(logrus.Fields{
		"router_id": ospfConf.RouterID,
		"area":      ospfConf.AreaID,
		"interface": ospfConf.Interface,
	}).Info("instance created")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Run(ctx)
	})

	g.Go(func() error {
		return instance.Run(ctx)
	})

	g.Go(func() error {
		return api.NewServer(instance, conf.Socket, cancel, version, log).Run(ctx)
	})

	if conf.MetricsListen != "" {
		g.Go(func() error {
			return api.NewHTTPServer(conf.MetricsListen, instance, log).Run(ctx)
		})
	}

	err = g.Wait()
	log.Info("stopped")
	return err
}

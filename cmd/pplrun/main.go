// Command pplrun runs the generated router program (package gen)
// against shared-memory ingress and egress rings, optionally serving a
// control-plane API alongside it.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netrack/ppl/config"
	"github.com/netrack/ppl/controlapi"
	"github.com/netrack/ppl/gen"
	"github.com/netrack/ppl/phy"
	"github.com/netrack/ppl/pipeline"
	"github.com/netrack/ppl/pplog"
	"github.com/netrack/ppl/ring"
	"github.com/netrack/ppl/ring/shmring"
	"github.com/netrack/ppl/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pplrun",
		Short: "Run a compiled PPL router program against shared-memory rings",
	}
	root.AddCommand(newServeCmd(), newInjectCmd(), newTableCmd())
	return root
}

var (
	ringCapacity int
	ringSlotSize int
)

func addRingFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ringCapacity, "ring-capacity", 256, "number of slots per ring")
	cmd.Flags().IntVar(&ringSlotSize, "ring-slot-size", 2048, "bytes per ring slot")
}

func newServeCmd() *cobra.Command {
	var (
		ingressPaths []string
		egressPaths  []string
		configPath   string
		apiAddr      string
		apiKeyPath   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline executor, reading table entries from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pplog.Default()

			router := table.New[gen.RouterAction]()
			if configPath != "" {
				f, err := config.Load(configPath)
				if err != nil {
					return err
				}
				entries, err := f.TableEntries()
				if err != nil {
					return err
				}
				for _, e := range entries {
					if err := router.Insert(e); err != nil {
						return err
					}
				}
				logger.Info("loaded table entries", "count", len(entries), "path", configPath)
			}

			ingress, egress, closeRings, err := openRings(ingressPaths, egressPaths)
			if err != nil {
				return err
			}
			defer closeRings()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if apiAddr != "" {
				verifyKey, err := loadRSAPublicKey(apiKeyPath)
				if err != nil {
					return err
				}
				api := controlapi.New(router, verifyKey)
				srv := &http.Server{Addr: apiAddr, Handler: api.Handler()}
				logger.Info("control api listening", "addr", apiAddr)
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("control api server stopped", "error", err)
					}
				}()
				go func() {
					<-ctx.Done()
					srv.Close()
				}()
			}

			logger.Info("pipeline starting", "ingress", len(ingress), "egress", len(egress))
			return pipeline.Run[gen.Headers, *gen.Headers](ctx, pipeline.Executor[gen.Headers, *gen.Headers]{
				Ingress: ingress,
				Egress:  egress,
				Parse:   gen.Parse,
				Control: gen.NewControl(router),
				Logger:  logger,
			})
		},
	}

	cmd.Flags().StringSliceVar(&ingressPaths, "ingress", nil, "ingress ring file paths, in port order")
	cmd.Flags().StringSliceVar(&egressPaths, "egress", nil, "egress ring file paths, in port order")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file of static table entries")
	cmd.Flags().StringVar(&apiAddr, "api-addr", "", "address to serve the control-plane API on (disabled if empty)")
	cmd.Flags().StringVar(&apiKeyPath, "api-verify-key", "", "PEM-encoded RSA public key used to verify API bearer tokens")
	addRingFlags(cmd)
	return cmd
}

func newInjectCmd() *cobra.Command {
	var ingressPath string

	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Write a single Ethernet frame onto an ingress ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := shmring.Open(ingressPath, ringCapacity, ringSlotSize)
			if err != nil {
				return err
			}
			defer r.Close()

			f := phy.Frame{
				Dst:       [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
				Src:       [6]byte{0, 0, 0, 0, 0, 1},
				EtherType: gen.EtherTypeIPv6,
			}
			p := phy.New(r)
			return p.Write([]phy.Frame{f})
		},
	}
	cmd.Flags().StringVar(&ingressPath, "ingress", "", "ingress ring file path")
	cmd.MarkFlagRequired("ingress")
	addRingFlags(cmd)
	return cmd
}

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Inspect table configuration",
	}
	cmd.AddCommand(newTableDumpCmd())
	return cmd
}

func newTableDumpCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the table entries a config file would load",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(configPath)
			if err != nil {
				return err
			}
			entries, err := f.TableEntries()
			if err != nil {
				return err
			}
			rt := buildRouterTable(entries)
			fmt.Fprint(cmd.OutOrStdout(), rt.Dump())
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file of static table entries")
	cmd.MarkFlagRequired("config")
	return cmd
}

func buildRouterTable(entries []table.TableEntry[gen.RouterAction]) *table.Table[gen.RouterAction] {
	rt := table.New[gen.RouterAction]()
	for _, e := range entries {
		rt.Insert(e)
	}
	return rt
}

func openRings(ingressPaths, egressPaths []string) ([]ring.Consumer, []ring.Producer, func(), error) {
	var closers []interface{ Close() error }

	ingress := make([]ring.Consumer, len(ingressPaths))
	for i, p := range ingressPaths {
		r, err := shmring.Open(p, ringCapacity, ringSlotSize)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("ingress[%d] %s: %w", i, p, err)
		}
		ingress[i] = r
		closers = append(closers, r)
	}

	egress := make([]ring.Producer, len(egressPaths))
	for i, p := range egressPaths {
		r, err := shmring.Open(p, ringCapacity, ringSlotSize)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("egress[%d] %s: %w", i, p, err)
		}
		egress[i] = r
		closers = append(closers, r)
	}

	return ingress, egress, func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%s: not a PEM file", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA public key", path)
	}
	return key, nil
}

// Command genet-echo is a minimal demonstration harness for the genet
// transport: it listens for connections and echoes every received
// packet back to its sender on the same channel.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genet"
	"genet/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	var (
		bindHost string
		bindPort int
		peerLimit int
		verbose  bool
	)

	root := &cobra.Command{
		Use:   "genet-echo",
		Short: "Run a genet echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Banner("genet echo server", version)

			level := zapcore.InfoLevel
			if verbose {
				level = zapcore.DebugLevel
			}
			log := logger.New(level)
			defer log.Sync()

			addr := genet.AddressFromUDP(&net.UDPAddr{IP: net.ParseIP(bindHost), Port: bindPort})
			host, err := genet.NewHost(genet.Config{
				Address:   addr,
				PeerLimit: peerLimit,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("start host: %w", err)
			}
			defer host.Destroy()

			logger.Section("listening")
			log.Sugar().Infof("bound to %s", host.LocalAddress())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			done := make(chan struct{})
			go func() {
				<-sig
				close(done)
			}()

			for {
				select {
				case <-done:
					return nil
				default:
				}
				ev, err := host.Service(100 * time.Millisecond)
				if err != nil {
					return err
				}
				switch ev.Type {
				case genet.EventConnect:
					log.Sugar().Infof("peer connected: %s", ev.Peer.RemoteAddress())
				case genet.EventDisconnect, genet.EventDisconnectTimeout:
					log.Sugar().Infof("peer disconnected: %s", ev.Peer.RemoteAddress())
				case genet.EventReceive:
					_ = ev.Peer.Send(ev.ChannelID, ev.Packet)
					ev.Packet.Destroy()
				}
			}
		},
	}

	flags := root.Flags()
	flags.StringVar(&bindHost, "host", "::", "address to bind")
	flags.IntVar(&bindPort, "port", 7777, "port to bind")
	flags.IntVar(&peerLimit, "peer-limit", 32, "maximum concurrent peers")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skycoin/stopwait/pkg/config"
	"github.com/skycoin/stopwait/pkg/payload"
	"github.com/skycoin/stopwait/pkg/session"
	"github.com/skycoin/stopwait/pkg/transferlog"
	"github.com/skycoin/stopwait/pkg/transport"
)

var (
	bindAddr     string
	remoteAddr   string
	fragmentSize int
	dataCorrupt  float64
	dataLoss     float64
	rtTimeout    time.Duration
	maxRetrans   int
)

func init() {
	sendCmd.Flags().StringVarP(&bindAddr, "bind", "b", ":0", "local address to send from")
	sendCmd.Flags().StringVarP(&remoteAddr, "remote", "r", config.DefaultAddr, "receiver address, overrides remote_addr")
	sendCmd.Flags().IntVarP(&fragmentSize, "fragment-size", "f", session.DefaultFragmentSize, "payload bytes per datagram, overrides fragment_size")
	sendCmd.Flags().Float64Var(&dataCorrupt, "corrupt", 0, "fraction of data packets to corrupt, overrides data_corruption_rate")
	sendCmd.Flags().Float64Var(&dataLoss, "loss", 0, "fraction of data packets to drop, overrides data_loss_rate")
	sendCmd.Flags().DurationVarP(&rtTimeout, "timeout", "t", 0, "retransmit timeout, 0 waits forever; overrides retransmit_timeout")
	sendCmd.Flags().IntVar(&maxRetrans, "max-retransmits", 0, "retransmissions of one fragment before giving up, 0 is unbounded; overrides max_retransmits")
}

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Sends a file to a receiver",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg.startProfiler().
			startLogger().
			readConfig()

		flags := cmd.Flags()
		conf := cfg.conf
		if flags.Changed("remote") {
			conf.RemoteAddr = remoteAddr
		}
		if flags.Changed("fragment-size") {
			conf.FragmentSize = fragmentSize
		}
		if flags.Changed("corrupt") {
			conf.DataCorruptionRate = dataCorrupt
		}
		if flags.Changed("loss") {
			conf.DataLossRate = dataLoss
		}
		if flags.Changed("timeout") {
			conf.RetransmitTimeout = config.Duration(rtTimeout)
		}
		if flags.Changed("max-retransmits") {
			conf.MaxRetransmits = maxRetrans
		}

		cfg.applyConfig().
			openStore().
			waitOsSignals().
			serveHTTP()

		if err := cfg.send(args[0]); err != nil {
			cfg.logger.Fatalf("Transfer failed: %s", err)
		}
	},
}

func (cfg *runCfg) send(path string) error {
	defer cfg.close()

	data, err := payload.Load(path)
	if err != nil {
		return err
	}

	peer, err := transport.ResolvePeer(cfg.conf.RemoteAddr)
	if err != nil {
		return err
	}
	conn, err := transport.Listen(bindAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			cfg.logger.WithError(err).Warn("Failed to close connection")
		}
	}()
	metered := transport.Meter(conn)

	rep, err := session.Send(cfg.ctx, metered, peer, data, cfg.conf.SendOptions())
	cfg.metrics.ObserveSend(rep, err)
	if rep != nil {
		cfg.record(transferlog.FromSendReport(rep, metered.Entry, err))
	}
	if err != nil {
		return err
	}

	printSendReport(rep)
	return nil
}

func printSendReport(rep *session.SendReport) {
	s := rep.Stats
	fmt.Printf("session:          %s\n", rep.ID)
	fmt.Printf("sent:             %d bytes in %d fragments to %s\n", rep.Size, rep.Fragments, rep.Peer)
	fmt.Printf("sha256:           %s\n", rep.Digest.Hex())
	fmt.Printf("duration:         %s\n", rep.Duration)
	fmt.Printf("data packets:     %d (%d retransmissions)\n", s.DataSent, s.Retransmissions)
	fmt.Printf("ack checksum err: %d\n", s.ChecksumErrors)
	fmt.Printf("ack sequence err: %d\n", s.SequenceErrors)
	fmt.Printf("timeouts:         %d\n", s.Timeouts)
	fmt.Printf("impaired:         %d corrupted, %d dropped\n", s.Corrupted, s.Dropped)
}

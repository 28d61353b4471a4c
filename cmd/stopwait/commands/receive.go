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
	localAddr  string
	ackCorrupt float64
	ackLoss    float64
	linger     time.Duration
	outputDir  string
	outputName string
	httpAddr   string
)

func init() {
	receiveCmd.Flags().StringVarP(&localAddr, "local", "l", config.DefaultAddr, "address to receive on, overrides local_addr")
	receiveCmd.Flags().Float64Var(&ackCorrupt, "corrupt", 0, "fraction of acknowledgments to corrupt, overrides ack_corruption_rate")
	receiveCmd.Flags().Float64Var(&ackLoss, "loss", 0, "fraction of acknowledgments to drop, overrides ack_loss_rate")
	receiveCmd.Flags().DurationVar(&linger, "linger", 0, "keep answering retransmissions until quiet for this long, overrides linger")
	receiveCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory to store the payload in, overrides output_dir")
	receiveCmd.Flags().StringVarP(&outputName, "output-name", "n", "", "file name of the payload, overrides output_name. Defaults to "+payload.DefaultName+" with a detected extension")
	receiveCmd.Flags().StringVar(&httpAddr, "http", "", "address of the HTTP API, overrides http_addr")
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receives one file from a sender",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cfg.startProfiler().
			startLogger().
			readConfig()

		flags := cmd.Flags()
		conf := cfg.conf
		if flags.Changed("local") {
			conf.LocalAddr = localAddr
		}
		if flags.Changed("corrupt") {
			conf.AckCorruptionRate = ackCorrupt
		}
		if flags.Changed("loss") {
			conf.AckLossRate = ackLoss
		}
		if flags.Changed("linger") {
			conf.Linger = config.Duration(linger)
		}
		if flags.Changed("output-dir") {
			conf.OutputDir = outputDir
		}
		if flags.Changed("output-name") {
			conf.OutputName = outputName
		}
		if flags.Changed("http") {
			conf.HTTPAddr = httpAddr
		}

		cfg.applyConfig().
			openStore().
			waitOsSignals().
			serveHTTP()

		if err := cfg.receive(); err != nil {
			cfg.logger.Fatalf("Transfer failed: %s", err)
		}
	},
}

func (cfg *runCfg) receive() error {
	defer cfg.close()

	conn, err := transport.Listen(cfg.conf.LocalAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			cfg.logger.WithError(err).Warn("Failed to close connection")
		}
	}()
	metered := transport.Meter(conn)

	rep, err := session.Receive(cfg.ctx, metered, cfg.conf.ReceiveOptions())
	var path string
	if err == nil {
		path, err = payload.Store(cfg.conf.OutputDir, cfg.conf.OutputName, rep.Payload)
	}
	cfg.metrics.ObserveReceive(rep, err)
	if rep != nil {
		cfg.record(transferlog.FromReceiveReport(rep, path, metered.Entry, err))
	}
	if err != nil {
		return err
	}

	printReceiveReport(rep, path)

	if cfg.conf.HTTPAddr != "" {
		cfg.logger.Infof("Transfer complete, HTTP API stays up on %s until interrupted", cfg.conf.HTTPAddr)
		<-cfg.ctx.Done()
	}
	return nil
}

func printReceiveReport(rep *session.ReceiveReport, path string) {
	s := rep.Stats
	fmt.Printf("session:          %s\n", rep.ID)
	fmt.Printf("received:         %d bytes in %d fragments from %s\n", rep.Size, rep.Fragments, rep.Peer)
	fmt.Printf("stored:           %s\n", path)
	fmt.Printf("sha256:           %s\n", rep.Digest.Hex())
	fmt.Printf("duration:         %s\n", rep.Duration)
	fmt.Printf("data packets:     %d (%d duplicates)\n", s.Received, s.Duplicates)
	fmt.Printf("checksum errors:  %d\n", s.ChecksumErrors)
	fmt.Printf("acks:             %d\n", s.AcksSent)
	fmt.Printf("impaired:         %d corrupted, %d dropped\n", s.Corrupted, s.Dropped)
}

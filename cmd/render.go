package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ethpandaops/callflow/internal/version"
	"github.com/ethpandaops/callflow/pkg/config"
	"github.com/ethpandaops/callflow/pkg/diagram"
	"github.com/ethpandaops/callflow/pkg/processor"
)

// renderFlags are command line overrides of the diagram and output config.
type renderFlags struct {
	diagram  diagram.Options
	dir      string
	fileName string
	stdout   bool
}

var (
	callFlags  renderFlags
	valueFlags renderFlags
)

var callCmd = &cobra.Command{
	Use:   "call <txHash>...",
	Short: "Draws the contract calls of one or more transactions.",
	Long: `Draws the contract calls of one or more transactions as a PlantUML
sequence diagram. Several transactions are drawn in one diagram, each in its
own group.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd, args, processor.ModeCall, &callFlags)
	},
}

var valueCmd = &cobra.Command{
	Use:   "value <txHash>...",
	Short: "Draws the ether and token transfers of one or more transactions.",
	Long: `Draws the ether and token transfers of one or more transactions as a
PlantUML sequence diagram, followed by the net balance changes of every
participant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd, args, processor.ModeValue, &valueFlags)
	},
}

func init() {
	addRenderFlags(callCmd.Flags(), &callFlags, true)
	addRenderFlags(valueCmd.Flags(), &valueFlags, false)

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(valueCmd)
}

func addRenderFlags(fs *pflag.FlagSet, f *renderFlags, calls bool) {
	if calls {
		fs.BoolVar(&f.diagram.NoGas, "no-gas", false, "hide gas usage")
		fs.BoolVar(&f.diagram.NoParams, "no-params", false, "hide function parameters and return values")
		fs.BoolVar(&f.diagram.NoEther, "no-ether", false, "hide ether values on calls")
		fs.BoolVar(&f.diagram.NoDelegates, "no-delegates", false, "hide delegate calls")
		fs.BoolVar(&f.diagram.NoLogs, "no-logs", false, "hide emitted events")
		fs.IntVar(&f.diagram.Depth, "depth", diagram.UnlimitedDepth, "maximum call depth to draw, -1 for unlimited")
		fs.IntVar(&f.diagram.MaxMessageLength, "max-message-length", diagram.DefaultMaxMessageLength, "truncate longer message lines")
	}

	fs.BoolVar(&f.diagram.NoTxDetails, "no-tx-details", false, "hide the transaction details note")
	fs.StringVar(&f.diagram.Currency, "currency", "", "native currency symbol, defaults to the network's")
	fs.StringVar(&f.diagram.Title, "title", "", "diagram title")
	fs.StringVar(&f.diagram.Network, "network", "", "network name shown in the caption, defaults to the chain's")
	fs.StringVarP(&f.dir, "output-dir", "o", "", "directory to write the diagram to")
	fs.StringVarP(&f.fileName, "filename", "f", "", "diagram file name without extension, defaults to the first transaction hash")
	fs.BoolVar(&f.stdout, "stdout", false, "write the diagram to stdout instead of a file")
}

// apply overrides the config with every flag set on the command line.
func (f *renderFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	overrides := map[string]func(){
		"no-gas":             func() { cfg.Diagram.NoGas = f.diagram.NoGas },
		"no-params":          func() { cfg.Diagram.NoParams = f.diagram.NoParams },
		"no-ether":           func() { cfg.Diagram.NoEther = f.diagram.NoEther },
		"no-delegates":       func() { cfg.Diagram.NoDelegates = f.diagram.NoDelegates },
		"no-logs":            func() { cfg.Diagram.NoLogs = f.diagram.NoLogs },
		"no-tx-details":      func() { cfg.Diagram.NoTxDetails = f.diagram.NoTxDetails },
		"depth":              func() { cfg.Diagram.Depth = f.diagram.Depth },
		"max-message-length": func() { cfg.Diagram.MaxMessageLength = f.diagram.MaxMessageLength },
		"currency":           func() { cfg.Diagram.Currency = f.diagram.Currency },
		"title":              func() { cfg.Diagram.Title = f.diagram.Title },
		"network":            func() { cfg.Diagram.Network = f.diagram.Network },
		"output-dir":         func() { cfg.Output.Dir = f.dir },
		"filename":           func() { cfg.Output.FileName = f.fileName },
	}

	fs.Visit(func(flag *pflag.Flag) {
		if override, ok := overrides[flag.Name]; ok {
			override()
		}
	})
}

func runRender(cmd *cobra.Command, args []string, mode string, flags *renderFlags) error {
	hashes, err := processor.ParseHashes(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags.apply(cmd.Flags(), cfg)

	log.WithFields(logrus.Fields{
		"version":      version.Full(),
		"mode":         mode,
		"transactions": len(hashes),
	}).Info("Starting callflow")

	srv, err := newServer(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	return srv.Run(cmd.Context(), func(ctx context.Context, p *processor.Processor) error {
		if flags.stdout {
			return render(ctx, p, mode, os.Stdout, hashes)
		}

		return renderFile(ctx, p, mode, cfg.Output.Path(hashes, fileSuffix(mode)), hashes)
	})
}

func fileSuffix(mode string) string {
	if mode == processor.ModeValue {
		return "-value"
	}

	return ""
}

func renderFile(ctx context.Context, p *processor.Processor, mode, path string, hashes []common.Hash) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create diagram file: %w", err)
	}

	renderErr := render(ctx, p, mode, file, hashes)

	if err := file.Close(); err != nil {
		return errors.Join(renderErr, fmt.Errorf("failed to close diagram file: %w", err))
	}

	if errors.Is(renderErr, processor.ErrNothingToRender) {
		if err := os.Remove(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to remove empty diagram file")
		}

		return renderErr
	}

	log.WithField("path", path).Info("Wrote diagram")

	return renderErr
}

func render(ctx context.Context, p *processor.Processor, mode string, w io.Writer, hashes []common.Hash) error {
	if mode == processor.ModeValue {
		_, err := p.WriteValues(ctx, w, hashes)

		return err
	}

	res, err := p.WriteCalls(ctx, w, hashes)
	if res != nil {
		log.WithFields(logrus.Fields{
			"messages":    res.Messages,
			"activations": res.Activations,
			"warnings":    len(res.Warnings),
		}).Debug("Rendered call diagram")
	}

	return err
}

package client

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/gdid/internal/cmd/client/transports"
	"github.com/rzbill/gdid/pkg/gdid"
	"github.com/rzbill/gdid/pkg/generator"
)

// NewGenerateCommand constructs the `generate` command, which runs a local
// Generator against the Authority and prints the identifiers it hands out.
func NewGenerateCommand(addr AddrFunc) *cobra.Command {
	defaults := generatorDefaults()
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate identifiers through a local generator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			seq, _ := cmd.Flags().GetString("sequence")
			count, _ := cmd.Flags().GetInt("count")
			consecutive, _ := cmd.Flags().GetBool("consecutive")
			blockSize, _ := cmd.Flags().GetInt("block-size")
			vicinityStr, _ := cmd.Flags().GetString("vicinity")
			format, _ := cmd.Flags().GetString("format")
			retries, _ := cmd.Flags().GetInt("retries")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			vicinity, err := parseVicinity(vicinityStr)
			if err != nil {
				return err
			}
			printer, err := idPrinter(format)
			if err != nil {
				return err
			}
			opts := gdid.DefaultAllocationOptions()
			opts.BlockSize = blockSize
			opts.Vicinity = vicinity
			// A CLI run is short lived: refilling ahead only wastes counters.
			opts.NoLowWaterMark = true

			return withTransport(addr, func(tr transports.AuthorityTransport) error {
				gen, err := generator.New(generator.Options{
					Resolver:         generator.StaticResolver{Client: tr},
					DefaultBlockSize: max(count, 1),
					LowWaterMark:     defaults.LowWaterMark,
					RetryCount:       retries,
					RetryInterval:    defaults.RetryInterval(),
					CallTimeout:      timeout,
				})
				if err != nil {
					return err
				}
				defer gen.Close()
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				if !consecutive {
					for i := 0; i < count; i++ {
						id, err := gen.GenerateOne(ctx, scope, seq, opts)
						if err != nil {
							return err
						}
						printer(out, id)
					}
					return nil
				}
				for left := count; left > 0; {
					first, got, err := gen.TryGenerateManyConsecutive(ctx, scope, seq, left, opts)
					if err != nil {
						return err
					}
					for i := 0; i < got; i++ {
						printer(out, gdid.GDID{Era: first.Era, Counter: first.Counter + uint64(i)})
					}
					left -= got
				}
				return nil
			})
		},
	}
	cmd.Flags().String("scope", "", "Scope name (required)")
	cmd.Flags().String("sequence", "", "Sequence name (required)")
	cmd.Flags().Int("count", 1, "Number of identifiers to generate")
	cmd.Flags().Bool("consecutive", false, "Use consecutive runs instead of one-at-a-time generation")
	cmd.Flags().Int("block-size", 0, "Block size requested from the authority (default: --count)")
	cmd.Flags().String("vicinity", "", "Preferred counter position for the first block")
	cmd.Flags().String("format", "text", "Output format: text|human|counter")
	cmd.Flags().Int("retries", defaults.RetryCount, "Retries after a failed authority call")
	cmd.Flags().Duration("timeout", defaults.CallTimeout(), "Per-call authority timeout")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("sequence")
	return cmd
}

func parseVicinity(s string) (uint64, error) {
	if s == "" {
		return gdid.VicinityNone, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --vicinity: %w", err)
	}
	return v, nil
}

func idPrinter(format string) (func(io.Writer, gdid.GDID), error) {
	switch format {
	case "text", "":
		return func(w io.Writer, id gdid.GDID) { fmt.Fprintln(w, id.String()) }, nil
	case "human":
		return func(w io.Writer, id gdid.GDID) { fmt.Fprintln(w, id.Format()) }, nil
	case "counter":
		return func(w io.Writer, id gdid.GDID) { fmt.Fprintln(w, id.Counter) }, nil
	default:
		return nil, fmt.Errorf("invalid --format; use text|human|counter")
	}
}

// blockView is the printable form of a raw block.
type blockView struct {
	Scope          string    `json:"scope"`
	Sequence       string    `json:"sequence"`
	Era            uint32    `json:"era"`
	StartInclusive uint64    `json:"startInclusive"`
	Count          uint64    `json:"count"`
	First          string    `json:"first"`
	Authority      string    `json:"authority"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// NewBlockCommand constructs the `block` command, which allocates one raw
// block straight from the Authority.
func NewBlockCommand(addr AddrFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Allocate one raw block from the authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			seq, _ := cmd.Flags().GetString("sequence")
			size, _ := cmd.Flags().GetInt("size")
			vicinityStr, _ := cmd.Flags().GetString("vicinity")
			vicinity, err := parseVicinity(vicinityStr)
			if err != nil {
				return err
			}
			return withTransport(addr, func(tr transports.AuthorityTransport) error {
				blk, err := tr.AllocateBlock(cmd.Context(), scope, seq, size, vicinity)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), blockView{
					Scope:          blk.Scope,
					Sequence:       blk.Sequence,
					Era:            blk.Era,
					StartInclusive: blk.StartInclusive,
					Count:          blk.Count,
					First:          blk.At(0).String(),
					Authority:      blk.Authority,
					IssuedAt:       blk.IssuedAt,
				})
			})
		},
	}
	cmd.Flags().String("scope", "", "Scope name (required)")
	cmd.Flags().String("sequence", "", "Sequence name (required)")
	cmd.Flags().Int("size", generatorDefaults().DefaultBlockSize, "Requested block size")
	cmd.Flags().String("vicinity", "", "Preferred counter position")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("sequence")
	return cmd
}

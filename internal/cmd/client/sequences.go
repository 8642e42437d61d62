package client

import (
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/gdid/internal/cmd/client/transports"
	"github.com/rzbill/gdid/pkg/gdid"
)

// NewSequencesCommand constructs the `sequences` command listing what the
// Authority has issued.
func NewSequencesCommand(addr AddrFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "List sequences known to the authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			filter, _ := cmd.Flags().GetString("filter")
			return withTransport(addr, func(tr transports.AuthorityTransport) error {
				infos, err := tr.SequenceInfos(cmd.Context(), scope, filter)
				if err != nil {
					return err
				}
				if infos == nil {
					infos = []gdid.SequenceInfo{}
				}
				return printJSON(cmd.OutOrStdout(), infos)
			})
		},
	}
	cmd.Flags().String("scope", "", "Scope name (empty lists every scope)")
	cmd.Flags().String("filter", "", "CEL filter, e.g. 'era > 0 && current > 1000'")
	return cmd
}

// NewHealthCommand constructs the `health` command probing the gRPC health service.
func NewHealthCommand(addr AddrFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check authority health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _ := cmd.Flags().GetString("service")
			return withTransport(addr, func(tr transports.AuthorityTransport) error {
				st, err := tr.Health(cmd.Context(), service)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "status:", st)
				if st != "SERVING" {
					return fmt.Errorf("authority not serving: %s", st)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("service", "", "Service name (empty checks the whole server)")
	return cmd
}

// NewParseCommand constructs the offline `parse` command that decodes
// identifiers in either text or era:counter form.
func NewParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse ID...",
		Short: "Decode identifiers (text or era:counter form)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				id, err := gdid.Parse(a)
				if err != nil {
					if id, err = gdid.ParseHuman(a); err != nil {
						return fmt.Errorf("%s: not a gdid", a)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id.String(), id.Format())
			}
			return nil
		},
	}
}

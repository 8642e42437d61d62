package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the GDID client.
// It registers every client command against the given Authority address.
func NewRoot(addr AddrFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "gdid",
		Short: "GDID client commands",
	}
	AddCommands(root, addr)
	return root
}

// AddCommands registers the client commands on parent.
func AddCommands(parent *cobra.Command, addr AddrFunc) {
	parent.AddCommand(
		NewGenerateCommand(addr),
		NewBlockCommand(addr),
		NewSequencesCommand(addr),
		NewHealthCommand(addr),
		NewParseCommand(),
	)
}

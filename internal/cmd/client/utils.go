package client

import (
	"encoding/json"
	"io"

	transports "github.com/rzbill/gdid/internal/cmd/client/transports"
	cfgpkg "github.com/rzbill/gdid/internal/config"
)

// AddrFunc provides the Authority gRPC address (e.g., from env or flag).
type AddrFunc func() string

// AuthorityAddrFromEnv returns the Authority address from GDID_AUTHORITY_ADDR or a default.
func AuthorityAddrFromEnv() string {
	return generatorDefaults().Authority
}

// generatorDefaults are the built-in generator settings with GDID_* overrides.
func generatorDefaults() cfgpkg.GeneratorConfig {
	cfg := cfgpkg.Default()
	cfgpkg.FromEnv(&cfg)
	return cfg.Generator
}

const requester = "gdid-cli"

// getTransport dials the Authority; only gRPC for now.
var getTransport = func(addr string) (transports.AuthorityTransport, error) {
	return transports.NewGrpcTransport(addr, requester)
}

// withTransport provides a transport and ensures the connection is closed.
func withTransport(addr AddrFunc, fn func(transports.AuthorityTransport) error) error {
	tr, err := getTransport(addr())
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()
	return fn(tr)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

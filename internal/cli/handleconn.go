package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TerronesDiaz/socketbench/internal/server"
)

var (
	hcHost        string
	hcPort        int
	hcRoot        string
	hcServerName  string
	hcReadTimeout time.Duration
)

// handleConnCmd is the forked-mode worker entry point. The parent passes the
// accepted connection as fd 3 and reads the result record from stdout, so
// nothing else may write there.
var handleConnCmd = &cobra.Command{
	Use:    "handle-conn",
	Hidden: true,
	Short:  "Handle a single inherited connection (forked-mode worker)",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		rec, err := server.HandleInherited(os.NewFile(3, "conn"), server.Config{
			Host:        hcHost,
			Port:        hcPort,
			Mode:        server.ModeForking,
			PublicDir:   hcRoot,
			ServerName:  hcServerName,
			ReadTimeout: hcReadTimeout,
		}, logger)
		if err != nil {
			return err
		}
		return rec.Encode(os.Stdout)
	},
}

func init() {
	handleConnCmd.Flags().StringVar(&hcHost, "host", "0.0.0.0", "bind address the parent reports")
	handleConnCmd.Flags().IntVar(&hcPort, "port", 0, "port the parent listens on")
	handleConnCmd.Flags().StringVar(&hcRoot, "root", "public", "served root directory")
	handleConnCmd.Flags().StringVar(&hcServerName, "server-name", "socketbench", "Server header value")
	handleConnCmd.Flags().DurationVar(&hcReadTimeout, "read-timeout", 30*time.Second, "request read deadline")
}

package cmd

import (
	"net"
	"os"
	"os/signal"

	"checkers/envrpc"

	"github.com/spf13/cobra"
)

var (
	serveListen string

	serveEnvCmd = &cobra.Command{
		Use:   "serve-env",
		Short: "Serve a checkers environment over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			lis, err := net.Listen("tcp", serveListen)
			if err != nil {
				return err
			}
			return envrpc.Serve(ctx, lis, envrpc.NewServer(nil))
		},
	}
)

func init() {
	serveEnvCmd.Flags().StringVar(&serveListen, "listen", ":50051", "address to listen on")
}

// otpctl es la CLI de operación: genera OTPs y claves, simula un device QR
// y administra el gateway vía su API de admin.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "otpctl",
		Short:        "CLI de operación para otpgate",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(
		newHOTPCmd(),
		newTOTPCmd(),
		newKeysCmd(),
		newQRCmd(),
		newJWTCmd(),
		newAdminCmd(),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printOut(cmd *cobra.Command, a ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), a...)
}

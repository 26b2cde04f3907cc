package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/util/atomicwrite"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Material de claves"}

	var (
		kind  string
		out   string
		force bool
	)
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Genera una clave: secretbox (security.secretbox_master_key) o qr (qr.server_key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				k   []byte
				err error
			)
			switch kind {
			case "secretbox", "jwt":
				k = make([]byte, 32)
				_, err = rand.Read(k)
			case "qr":
				k, err = qr.GenerateKey()
			default:
				return fmt.Errorf("--kind debe ser secretbox, qr o jwt")
			}
			if err != nil {
				return err
			}
			enc := base64.StdEncoding.EncodeToString(k)
			if out == "" {
				printOut(cmd, enc)
				return nil
			}
			if err := atomicwrite.WriteSecret(out, []byte(enc+"\n"), force); err != nil {
				return err
			}
			printOut(cmd, "wrote", out)
			return nil
		},
	}
	gen.Flags().StringVar(&kind, "kind", "secretbox", "secretbox|qr|jwt")
	gen.Flags().StringVar(&out, "out", "", "archivo destino (0600); vacío imprime en stdout")
	gen.Flags().BoolVar(&force, "force", false, "pisar el archivo si existe")

	keys.AddCommand(gen)
	return keys
}

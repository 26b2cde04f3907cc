package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/otpgate/internal/qr"
	"github.com/dropDatabas3/otpgate/internal/util/atomicwrite"
)

// newQRCmd simula la app del teléfono: útil para probar el flujo QR
// sin un device real.
func newQRCmd() *cobra.Command {
	qrCmd := &cobra.Command{Use: "qr", Short: "Simulador de device QR"}

	var (
		pairURL    string
		tokenID    string
		deviceFile string
		force      bool
	)
	pair := &cobra.Command{
		Use:   "pair",
		Short: "Procesa una pairing URL, guarda el device y emite la pairing response",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := qr.ParsePairingURL(pairURL)
			if err != nil {
				return err
			}
			dev, err := qr.NewDevice(inv, tokenID)
			if err != nil {
				return err
			}
			resp, err := dev.PairingResponse()
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(dev, "", "  ")
			if err != nil {
				return err
			}
			if err := atomicwrite.WriteSecret(deviceFile, b, force); err != nil {
				return err
			}
			printOut(cmd, resp)
			return nil
		},
	}
	pair.Flags().StringVar(&pairURL, "url", "", "pairing URL recibida al enrolar")
	pair.Flags().StringVar(&tokenID, "token-id", "otpctl", "id del device")
	pair.Flags().StringVar(&deviceFile, "state", "device.json", "estado del device (JSON, 0600)")
	pair.Flags().BoolVar(&force, "force", false, "pisar el archivo de estado si existe")
	_ = pair.MarkFlagRequired("url")

	var challengeURL string
	answer := &cobra.Command{
		Use:   "answer",
		Short: "Verifica un challenge URL y calcula firma y TAN",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(deviceFile)
			if err != nil {
				return err
			}
			var dev qr.Device
			if err := json.Unmarshal(b, &dev); err != nil {
				return fmt.Errorf("state: %w", err)
			}
			a, err := dev.Answer(challengeURL)
			if err != nil {
				return err
			}
			printOut(cmd, "transactionid:", a.TransactionID)
			printOut(cmd, "message:", a.Message)
			printOut(cmd, "signature:", a.Signature)
			printOut(cmd, "tan:", a.TAN)
			return nil
		},
	}
	answer.Flags().StringVar(&challengeURL, "challenge", "", "challenge URL (transactiondata)")
	answer.Flags().StringVar(&deviceFile, "state", "device.json", "estado del device (JSON, 0600)")
	_ = answer.MarkFlagRequired("challenge")

	qrCmd.AddCommand(pair, answer)
	return qrCmd
}

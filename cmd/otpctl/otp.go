package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/otpgate/internal/security/hotp"
	"github.com/dropDatabas3/otpgate/internal/security/totp"
)

func decodeSeed(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "seed://"))
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("--seed debe ser hex (o seed://hex)")
	}
	return b, nil
}

func newHOTPCmd() *cobra.Command {
	var (
		key     string
		counter int64
		digits  int
		count   int
	)
	cmd := &cobra.Command{
		Use:   "hotp",
		Short: "Calcula OTPs HOTP a partir de un seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := decodeSeed(key)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				otp, err := hotp.Generate(seed, counter+int64(i), digits)
				if err != nil {
					return err
				}
				printOut(cmd, counter+int64(i), otp)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "seed", "", "seed en hex")
	cmd.Flags().Int64Var(&counter, "counter", 0, "contador inicial")
	cmd.Flags().IntVar(&digits, "digits", 6, "6 u 8")
	cmd.Flags().IntVar(&count, "count", 1, "cantidad de OTPs consecutivos")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

func newTOTPCmd() *cobra.Command {
	var (
		key    string
		at     int64
		step   int
		digits int
	)
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Calcula el OTP TOTP para un instante (default: ahora)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := decodeSeed(key)
			if err != nil {
				return err
			}
			t := time.Now()
			if at > 0 {
				t = time.Unix(at, 0)
			}
			otp, err := totp.Generate(seed, t, step, digits)
			if err != nil {
				return err
			}
			printOut(cmd, otp)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "seed", "", "seed en hex")
	cmd.Flags().Int64Var(&at, "time", 0, "unix time (0 = ahora)")
	cmd.Flags().IntVar(&step, "step", totp.DefaultStep, "time step en segundos")
	cmd.Flags().IntVar(&digits, "digits", 6, "6 u 8")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

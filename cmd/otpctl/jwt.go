package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/otpgate/internal/jwt"
)

func newJWTCmd() *cobra.Command {
	jwtCmd := &cobra.Command{Use: "jwt", Short: "Tokens de sesión para /userservice"}

	var (
		secret string
		issuer string
		sub    string
		realm  string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Firma un bearer token HS256 para user@realm",
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := jwt.NewCodec(secret, issuer, "")
			if err != nil {
				return err
			}
			tok, err := codec.Issue(sub, realm, ttl)
			if err != nil {
				return err
			}
			printOut(cmd, tok)
			return nil
		},
	}
	issue.Flags().StringVar(&secret, "secret", envOr("OTPGATE_JWT_SECRET", ""), "secreto HS256 (env OTPGATE_JWT_SECRET)")
	issue.Flags().StringVar(&issuer, "issuer", "", "iss")
	issue.Flags().StringVar(&sub, "sub", "", "login (user o user@realm)")
	issue.Flags().StringVar(&realm, "realm", "", "realm explícito")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "vigencia")
	_ = issue.MarkFlagRequired("sub")

	jwtCmd.AddCommand(issue)
	return jwtCmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c *client) post(path string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(c.BaseURL, "/")+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// call hace el POST, imprime el sobre indentado y falla si status != 2xx.
func (c *client) call(cmd *cobra.Command, path string, form url.Values) error {
	status, body, err := c.post(path, form)
	if err != nil {
		return err
	}
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		printOut(cmd, string(p))
	} else {
		printOut(cmd, string(body))
	}
	if status/100 != 2 {
		return fmt.Errorf("%s: status=%d", path, status)
	}
	return nil
}

func newAdminCmd() *cobra.Command {
	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operaciones administrativas contra un otpgate en ejecución",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cl.APIKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env OTPGATE_ADMIN_API_KEY)")
			}
			return nil
		},
	}
	admin.PersistentFlags().StringVar(&cl.BaseURL, "url", envOr("OTPGATE_URL", "http://localhost:8080"), "URL base (env OTPGATE_URL)")
	admin.PersistentFlags().StringVar(&cl.APIKey, "admin-api-key", envOr("OTPGATE_ADMIN_API_KEY", ""), "API key (env OTPGATE_ADMIN_API_KEY)")

	var user, realm, typ, serial, otpkey, pin, phone string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Enrola un token para un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := url.Values{"user": {user}, "type": {typ}}
			for k, v := range map[string]string{"realm": realm, "serial": serial, "otpkey": otpkey, "pin": pin, "phone": phone} {
				if v != "" {
					form.Set(k, v)
				}
			}
			return cl.call(cmd, "/admin/init", form)
		},
	}
	initCmd.Flags().StringVar(&user, "user", "", "usuario dueño")
	initCmd.Flags().StringVar(&realm, "realm", "", "realm (default: el del server)")
	initCmd.Flags().StringVar(&typ, "type", "hmac", "hmac|totp|sms|qr")
	initCmd.Flags().StringVar(&serial, "serial", "", "serial (vacío: se genera)")
	initCmd.Flags().StringVar(&otpkey, "otpkey", "", "seed hex (vacío: se genera)")
	initCmd.Flags().StringVar(&pin, "pin", "", "PIN del token")
	initCmd.Flags().StringVar(&phone, "phone", "", "teléfono (tokens sms)")
	_ = initCmd.MarkFlagRequired("user")

	policy := &cobra.Command{Use: "policy", Short: "Políticas"}
	var name, scope, action, pUser, pRealm string
	var inactive bool
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Crea o reemplaza una política",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := url.Values{"name": {name}, "scope": {scope}, "action": {action}}
			if pUser != "" {
				form.Set("user", pUser)
			}
			if pRealm != "" {
				form.Set("realm", pRealm)
			}
			if inactive {
				form.Set("active", "false")
			}
			return cl.call(cmd, "/system/setPolicy", form)
		},
	}
	setCmd.Flags().StringVar(&name, "name", "", "nombre")
	setCmd.Flags().StringVar(&scope, "scope", "selfservice", "selfservice|authentication|admin")
	setCmd.Flags().StringVar(&action, "action", "", `acciones, ej: "verify, enrollHMAC"`)
	setCmd.Flags().StringVar(&pUser, "user", "", "usuarios (default *)")
	setCmd.Flags().StringVar(&pRealm, "realm", "", "realms (default *)")
	setCmd.Flags().BoolVar(&inactive, "inactive", false, "crearla desactivada")
	_ = setCmd.MarkFlagRequired("name")

	delCmd := &cobra.Command{
		Use:   "del NAME",
		Short: "Elimina una política",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call(cmd, "/system/delPolicy", url.Values{"name": {args[0]}})
		},
	}
	policy.AddCommand(setCmd, delCmd)

	admin.AddCommand(initCmd, policy)
	return admin
}

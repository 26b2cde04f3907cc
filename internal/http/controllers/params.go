// Package controllers traduce requests HTTP a llamadas del core y escribe
// el sobre de respuesta. No contiene lógica de verificación.
package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/http/reply"
	"github.com/dropDatabas3/otpgate/internal/verify"
)

var errBadBody = errors.New("invalid request body")

// readParams junta los parámetros de query + form o de un objeto JSON. En
// JSON los valores escalares se convierten a string; objetos y arrays se
// rechazan. Con valores repetidos gana el primero y el body pisa la query.
func readParams(r *http.Request) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return out, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, errBadBody
		}
		for k, v := range raw {
			switch t := v.(type) {
			case nil:
			case string:
				out[k] = t
			case json.Number, bool:
				out[k] = fmt.Sprint(t)
			default:
				return nil, errBadBody
			}
		}
	case "", "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, errBadBody
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
	default:
		return nil, errBadBody
	}
	return out, nil
}

// params lee los parámetros o escribe 400. ok=false si ya respondió.
func params(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	p, err := readParams(r)
	if err != nil {
		reply.WriteHTTPError(w, http.StatusBadRequest, reply.CodeBadRequest, err.Error())
		return nil, false
	}
	return p, true
}

// take extrae y borra claves que consume el controller y no el core.
func take(p map[string]string, key string) string {
	v := strings.TrimSpace(p[key])
	delete(p, key)
	return v
}

// detailDTO es la forma JSON de verify.Detail.
type detailDTO struct {
	Serial          string   `json:"serial,omitempty"`
	ReplyMode       []string `json:"reply_mode,omitempty"`
	TransactionID   string   `json:"transactionid,omitempty"`
	Message         string   `json:"message,omitempty"`
	TransactionData string   `json:"transactiondata,omitempty"`
}

func toDetail(resp *verify.Response) any {
	if resp == nil {
		return nil
	}
	d := resp.Detail
	if d.Serial == "" && d.TransactionID == "" && d.Message == "" && len(d.ReplyMode) == 0 {
		return nil
	}
	out := detailDTO{
		Serial:          d.Serial,
		ReplyMode:       d.ReplyMode,
		TransactionID:   d.TransactionID,
		Message:         d.Message,
		TransactionData: d.TransactionData,
	}
	if out.TransactionID != "" && len(out.ReplyMode) == 0 {
		out.ReplyMode = []string{verify.ReplyOffline}
	}
	return out
}

// writeVerify escribe el resultado de cualquier flujo de verify. Un error
// con respuesta (ej: falla de entrega SMS) conserva el detail.
func writeVerify(w http.ResponseWriter, r *http.Request, resp *verify.Response, err error) {
	if err != nil {
		reply.WriteError(w, r, err, toDetail(resp))
		return
	}
	reply.WriteValue(w, resp.Value, toDetail(resp))
}

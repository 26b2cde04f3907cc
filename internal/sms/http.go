package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/otpgate/internal/config"
)

// HTTPGateway hace un POST form-encoded a un gateway SMS.
type HTTPGateway struct {
	URL        string
	PhoneParam string
	TextParam  string
	Username   string
	Password   string
	Headers    map[string]string
	Client     *http.Client
}

func NewHTTPGateway(p config.SMSProvider) (*HTTPGateway, error) {
	if _, err := url.ParseRequestURI(p.HTTP.URL); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	g := &HTTPGateway{
		URL:        p.HTTP.URL,
		PhoneParam: p.HTTP.PhoneParam,
		TextParam:  p.HTTP.TextParam,
		Username:   p.HTTP.Username,
		Password:   p.HTTP.Password,
		Headers:    p.HTTP.Headers,
		Client:     http.DefaultClient,
	}
	if g.PhoneParam == "" {
		g.PhoneParam = "phone"
	}
	if g.TextParam == "" {
		g.TextParam = "text"
	}
	return g, nil
}

func (g *HTTPGateway) Deliver(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set(g.PhoneParam, phone)
	form.Set(g.TextParam, message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range g.Headers {
		req.Header.Set(k, v)
	}
	if g.Username != "" {
		req.SetBasicAuth(g.Username, g.Password)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return nil
}

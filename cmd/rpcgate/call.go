package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/mnehpets/rpcgate/jsonrpc"
)

// CallCmd sends one JSON-RPC call and prints the response.
type CallCmd struct {
	URL    string `help:"Gateway endpoint." default:"http://localhost:8080/api/v1/"`
	Token  string `help:"Bearer token or API key." env:"RPCGATE_TOKEN"`
	Method string `arg:"" help:"Method name, e.g. user.get_profile."`
	Params string `arg:"" optional:"" help:"Params as a JSON array or object." default:"[]"`

	client *http.Client `kong:"-"`
}

type callRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type callResponse struct {
	Result json.RawMessage       `json:"result"`
	Error  *jsonrpc.JSONRPCError `json:"error"`
}

func (c *CallCmd) Run(cli *CLI) error {
	if !json.Valid([]byte(c.Params)) {
		return fmt.Errorf("params is not valid JSON: %s", c.Params)
	}
	body, err := json.Marshal(callRequest{JSONRPC: "2.0", ID: 1, Method: c.Method, Params: json.RawMessage(c.Params)})
	if err != nil {
		return err
	}

	ctx := context.Background()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient(ctx).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, bytes.TrimSpace(raw))
	}

	var out callResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("bad response: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("call failed: %d %s", out.Error.Code, out.Error.Message)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out.Result, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, pretty.String())
	if t := resp.Header.Get(jsonrpc.HeaderAPITime); t != "" {
		fmt.Fprintf(cli.out, "(%s ms)\n", t)
	}
	return nil
}

// httpClient attaches the token as "Authorization: Bearer ...".
func (c *CallCmd) httpClient(ctx context.Context) *http.Client {
	base := c.client
	if base == nil {
		base = http.DefaultClient
	}
	if c.Token == "" {
		return base
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token, TokenType: "Bearer"}))
}

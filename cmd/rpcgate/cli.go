package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/mnehpets/rpcgate/auth"
	"github.com/mnehpets/rpcgate/config"
	"github.com/mnehpets/rpcgate/jsonrpc"
	"github.com/mnehpets/rpcgate/services"
	"github.com/mnehpets/rpcgate/store"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

// CLI is the kong command tree.
type CLI struct {
	Config  string `short:"c" help:"Path to the YAML config file." default:"rpcgate.yaml" type:"path"`
	EnvFile string `name:"env-file" help:"Load environment variables from this file if it exists." default:".env" type:"path"`

	Serve   ServeCmd   `cmd:"" help:"Run the JSON-RPC gateway."`
	Init    InitCmd    `cmd:"" help:"Write a config file with a fresh key secret and create the database."`
	Project ProjectCmd `cmd:"" help:"Manage API projects."`
	Call    CallCmd    `cmd:"" help:"Call a JSON-RPC method on a running gateway."`
	Logs    LogsCmd    `cmd:"" help:"Show recent audited calls."`
	Methods MethodsCmd `cmd:"" help:"List callable methods."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	out io.Writer `kong:"-"`
}

func run(args []string, stdout, stderr io.Writer) error {
	cli := &CLI{out: stdout}
	parser, err := kong.New(cli,
		kong.Name("rpcgate"),
		kong.Description("JSON-RPC 2.0 API gateway"),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(cli)
}

func (cli *CLI) load() (*config.Config, error) {
	cfg, err := config.Load(cli.Config, cli.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func (cli *CLI) open() (*config.Config, *store.DB, error) {
	cfg, err := cli.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// InitCmd writes a starter config.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

func (c *InitCmd) Run(cli *CLI) error {
	if _, err := os.Stat(cli.Config); err == nil && !c.Force {
		return fmt.Errorf("%s already exists; use --force to overwrite it", cli.Config)
	}

	cfg, err := config.Load("", cli.EnvFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	cfg.Auth.KeySecret = base64.RawStdEncoding.EncodeToString(secret)
	if err := cfg.Save(cli.Config); err != nil {
		return err
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(cli.out, "Wrote %s\nDatabase %s is ready\n", cli.Config, cfg.Database)
	return nil
}

// ProjectCmd groups project management.
type ProjectCmd struct {
	Add  ProjectAddCmd  `cmd:"" help:"Create a project and print its API key."`
	List ProjectListCmd `cmd:"" help:"List projects."`
}

type ProjectAddCmd struct {
	Code string `help:"Unique project code." required:""`
	Name string `help:"Display name. Defaults to the code."`
}

func (c *ProjectAddCmd) Run(cli *CLI) error {
	cfg, db, err := cli.open()
	if err != nil {
		return err
	}
	defer db.Close()
	secret, err := cfg.KeySecret()
	if err != nil {
		return err
	}

	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}
	p, err := db.CreateProject(context.Background(), c.Code, c.Name, auth.HashKey(secret, key))
	if errors.Is(err, store.ErrExists) {
		return fmt.Errorf("project %q already exists", c.Code)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Created project %s (id %d)\n", p.Code, p.ID)
	fmt.Fprintf(cli.out, "API key: %s\n", key)
	fmt.Fprintln(cli.out, "The key is not stored and cannot be shown again.")
	return nil
}

type ProjectListCmd struct{}

func (c *ProjectListCmd) Run(cli *CLI) error {
	_, db, err := cli.open()
	if err != nil {
		return err
	}
	defer db.Close()

	projects, err := db.Projects(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Code, p.Name, p.CreatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

// LogsCmd prints the audit log.
type LogsCmd struct {
	Limit int `help:"Number of entries to show." default:"20"`
}

func (c *LogsCmd) Run(cli *CLI) error {
	_, db, err := cli.open()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.AuditEntries(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPROJECT\tMETHOD\tRESULT\tDURATION\tTRACE")
	for _, e := range entries {
		method := e.Service
		if e.Method != "" {
			method += "." + e.Method
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format(time.DateTime), e.ProjectCode, method, e.ResponseType,
			e.Duration.Round(time.Microsecond), e.TraceID)
	}
	return tw.Flush()
}

// MethodsCmd lists the methods a gateway built from this binary serves.
type MethodsCmd struct{}

func (c *MethodsCmd) Run(cli *CLI) error {
	reg := jsonrpc.NewRegistry()
	jsonrpc.Mount(reg, jsonrpc.NewContainer(), services.All(nil, reg)...)
	for _, name := range reg.Methods() {
		fmt.Fprintln(cli.out, name)
	}
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Fprintf(cli.out, "rpcgate %s\n", version)
	return nil
}

// Package main is the normlite CLI entry point: exec/serve/inspect
// subcommands over one connection profile, grounded on the teacher's
// cmd/smf/main.go structure (one flags struct per subcommand, RunE
// closures, cobra root command).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"normlite/internal/config"
	"normlite/internal/conn"
	"normlite/internal/dbapi"
	"normlite/internal/notionclient"
	"normlite/internal/parser"
	"normlite/internal/proxyhttp"
	"normlite/internal/reflect"
	"normlite/internal/schema"
	"normlite/internal/uri"
)

type rootFlags struct {
	configPath string
	uriString  string
}

type serveFlags struct {
	addr string
}

func main() {
	root := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "normlite",
		Short: "A relational SQL front end for a Notion workspace",
	}
	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "", "path to a TOML connection profile")
	rootCmd.PersistentFlags().StringVar(&root.uriString, "uri", "", "normlite:// connection URI (overrides --config)")

	rootCmd.AddCommand(execCmd(root))
	rootCmd.AddCommand(serveCmd(root))
	rootCmd.AddCommand(inspectCmd(root))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveProfile prefers --uri over --config, falling back to an
// in-memory default when neither is given.
func resolveProfile(root *rootFlags) (config.Profile, error) {
	switch {
	case root.uriString != "":
		return uri.Parse(root.uriString)
	case root.configPath != "":
		return config.Load(root.configPath)
	default:
		return config.Default(), nil
	}
}

func openClient(root *rootFlags) (notionclient.Client, error) {
	profile, err := resolveProfile(root)
	if err != nil {
		return nil, err
	}
	return profile.Client()
}

func execCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <file.sql>",
		Short: "Execute a SQL script as one transaction and print any result rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExec(root, args[0])
		},
	}
	return cmd
}

func runExec(root *rootFlags, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("normlite: read %q: %w", path, err)
	}

	statements := splitStatements(string(content))
	if len(statements) == 0 {
		fmt.Println("no SQL statements found")
		return nil
	}

	client, err := openClient(root)
	if err != nil {
		return err
	}
	c := conn.New(client, schema.NewMetaData(), reflect.New(client))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("found %d statement(s) in %s\n", len(statements), path)

	cursors := make([]*dbapi.TransactionCursor, 0, len(statements))
	for _, stmt := range statements {
		node, err := parser.Parse(stmt)
		if err != nil {
			return fmt.Errorf("normlite: parse %q: %w", stmt, err)
		}
		cursor, err := c.Execute(ctx, node, nil)
		if err != nil {
			return fmt.Errorf("normlite: stage %q: %w", stmt, err)
		}
		cursors = append(cursors, cursor)
	}

	if err := c.Commit(ctx); err != nil {
		return fmt.Errorf("normlite: commit: %w", err)
	}

	for _, cursor := range cursors {
		if cursor.ReturnsRows() {
			printRows(os.Stdout, cursor)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printRows(w *os.File, cursor *dbapi.TransactionCursor) {
	desc, err := cursor.Description()
	if err != nil {
		return
	}
	rows, err := cursor.FetchAll()
	if err != nil {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := make([]string, len(desc))
	for i, d := range desc {
		header[i] = d.Name
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range rows {
		values := row.Values()
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func serveCmd(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP transaction proxy",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(root, flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", ":8080", "listen address")
	return cmd
}

func runServe(root *rootFlags, flags *serveFlags) error {
	client, err := openClient(root)
	if err != nil {
		return err
	}
	srv := proxyhttp.NewServer(client, schema.NewMetaData(), reflect.New(client))

	fmt.Printf("normlite: listening on %s\n", flags.addr)
	return http.ListenAndServe(flags.addr, srv)
}

func inspectCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <table>",
		Short: "Print a table's reflected columns",
		Long: `Inspect queries the reflector's name->database-id registry directly.
The command builds a fresh reflector and registers no table in it, so
every lookup fails with "no known remote id": there is no generic
find-database-by-title call in the Notion client for it to fall back to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(root, args[0])
		},
	}
	return cmd
}

func runInspect(root *rootFlags, name string) error {
	client, err := openClient(root)
	if err != nil {
		return err
	}
	r := reflect.New(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	row, err := r.DescribeTable(ctx, name)
	if err != nil {
		return fmt.Errorf("normlite: inspect %q: %w", name, err)
	}

	fmt.Printf("%s (%s)\n", row.Title, row.ID)
	for _, col := range row.Columns {
		fmt.Printf("  %-20s %s\n", col.Name, col.Type)
	}
	return nil
}

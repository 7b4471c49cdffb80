package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/mkrupp/filevault/internal/client"
	"github.com/mkrupp/filevault/internal/domain"
)

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("usage: filevaultctl login|ls|images|upload|upload-image|download|download-image|user-add")

// CLI runs one command against the server.
type CLI struct {
	client *client.HTTPClient
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// readPassword reads a password without echo. Defaults to the terminal.
	readPassword func() (string, error)
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	cmd, args := args[0], args[1:]

	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "ls":
		return c.list(ctx, c.client.ListFiles)
	case "images":
		return c.list(ctx, c.client.ListImages)
	case "upload":
		return c.upload(ctx, args, c.client.Upload)
	case "upload-image":
		return c.upload(ctx, args, c.client.UploadImage)
	case "download":
		return c.download(ctx, args, 0, false)
	case "download-image":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(c.errOut)
		width := fs.Int("width", 0, "resize to this width")

		if err := fs.Parse(args); err != nil {
			return err //nolint:wrapcheck
		}

		return c.download(ctx, fs.Args(), *width, true)
	case "user-add":
		return c.addUser(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (c *CLI) password() (string, error) {
	if c.readPassword != nil {
		return c.readPassword()
	}

	fmt.Fprint(c.errOut, "Password: ")

	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.errOut)

		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (c *CLI) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: login <username>", ErrUsage)
	}

	pw, err := c.password()
	if err != nil {
		return err
	}

	resp, err := c.client.Login(ctx, args[0], pw)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(c.errOut, "token valid until %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(c.out, "export FILEVAULT_TOKEN=%s\n", resp.Token)

	return nil
}

func (c *CLI) list(ctx context.Context, fetch func(context.Context) ([]domain.FileMeta, error)) error {
	files, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tTYPE\tCREATED")

	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Filename, f.Size, f.MIMEType, f.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	return tw.Flush() //nolint:wrapcheck
}

func (c *CLI) upload(
	ctx context.Context,
	args []string,
	send func(context.Context, string, io.Reader) (domain.FileID, error),
) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upload <path>", ErrUsage)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	id, err := send(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	fmt.Fprintln(c.out, id)

	return nil
}

func (c *CLI) download(ctx context.Context, args []string, width int, image bool) (err error) {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: download <name> [dest]", ErrUsage)
	}

	name, dest := args[0], filepath.Base(args[0])
	if len(args) == 2 {
		dest = args[1]
	}

	var w io.Writer = c.out

	if dest != "-" {
		f, ferr := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if ferr != nil {
			return fmt.Errorf("create: %w", ferr)
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close: %w", cerr)
			}

			if err != nil {
				_ = os.Remove(dest)
			}
		}()

		w = f
	}

	if image {
		_, err = c.client.DownloadImage(ctx, name, width, w)
	} else {
		_, err = c.client.Download(ctx, name, w)
	}

	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	return nil
}

func (c *CLI) addUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user-add", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	roleList := fs.String("role", "user", "comma separated roles")

	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: user-add [-role user] <username>", ErrUsage)
	}

	roles, err := domain.ParseRoleSet(strings.Split(*roleList, ","))
	if err != nil {
		return err //nolint:wrapcheck
	}

	pw, err := c.password()
	if err != nil {
		return err
	}

	created, err := c.client.AddUser(ctx, fs.Arg(0), pw, roles)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	fmt.Fprintf(c.out, "%s\t%s\n", created.Username, created.Roles)

	return nil
}

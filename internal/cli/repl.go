package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests provide a stub.
type execIface interface {
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Add(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Retry(ctx context.Context, id string) error
	Fetch(ctx context.Context) error
	AutoSync(ctx context.Context, arg string) error
	Provider(ctx context.Context, name string) error
	Folder(ctx context.Context) error
	Status(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a read-eval-print loop for the video diary CLI. It reads a
// line from the scanner, parses the first token as the command and
// dispatches to methods on a. Unknown commands are reported back. The loop
// exits on scanner EOF or when the user types "exit" or "quit".
//
// Handler errors are printed and the loop continues; no command failure is
// fatal to the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	report := func(err error) {
		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}

	for {
		printlnFn(fmt.Sprintf("vd (%s) > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}

		switch cmd {
		case "help":
			printlnFn("Available commands: (l)ist, show <id>, add, delete <id>, sync, retry <id>, fetch, autosync on|off, provider <name>, folder, status, login, logout, exit")

		case "l", "list":
			report(a.List(ctx))

		case "show":
			if arg == "" {
				printlnFn("Usage: show <id>")
				continue
			}
			report(a.Show(ctx, arg))

		case "add":
			report(a.Add(ctx))

		case "delete":
			if arg == "" {
				printlnFn("Usage: delete <id>")
				continue
			}
			report(a.Delete(ctx, arg))

		case "sync":
			report(a.Sync(ctx))

		case "retry":
			if arg == "" {
				printlnFn("Usage: retry <id>")
				continue
			}
			report(a.Retry(ctx, arg))

		case "fetch":
			report(a.Fetch(ctx))

		case "autosync":
			if arg != "on" && arg != "off" {
				printlnFn("Usage: autosync on|off")
				continue
			}
			report(a.AutoSync(ctx, arg))

		case "provider":
			if arg == "" {
				printlnFn("Usage: provider <name>")
				continue
			}
			report(a.Provider(ctx, arg))

		case "folder":
			report(a.Folder(ctx))

		case "status":
			report(a.Status(ctx))

		case "login":
			report(a.Login(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

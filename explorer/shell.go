package explorer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/internal/util"
)

const helpText = `Commands:
  ls [path]              list a folder
  cd [path]              enter a folder (no path: root, "..": back)
  pwd                    show the breadcrumb
  mkdir <path>           create a folder
  touch <path>           create an empty file
  cat <path>             print a file
  write <path> <text>    replace a file's content, creating it if missing
  mv <path> <new name>   rename
  move <path> <folder>   move into another folder
  rm <path>              delete, folders with everything inside
  help                   show this help
  exit                   leave the shell
Names containing spaces can be quoted: mkdir "My Documents"`

// Shell reads commands line by line and runs them against an Explorer.
// Failed commands print a message and the loop continues.
type Shell struct {
	x   *Explorer
	in  *bufio.Scanner
	out io.Writer
}

// NewShell returns a shell reading commands from in and writing to out
func NewShell(x *Explorer, in io.Reader, out io.Writer) *Shell {
	return &Shell{x: x, in: bufio.NewScanner(in), out: out}
}

// Run executes commands until "exit" or the end of input
func (sh *Shell) Run() error {
	for {
		sh.prompt()
		if !sh.in.Scan() {
			fmt.Fprintln(sh.out)
			return sh.in.Err()
		}
		if quit := sh.Exec(sh.in.Text()); quit {
			return nil
		}
	}
}

func (sh *Shell) prompt() {
	crumbs, err := sh.x.Breadcrumb()
	if err != nil {
		fmt.Fprint(sh.out, "?> ")
		return
	}
	fmt.Fprint(sh.out, joinNames(crumbs)+"> ")
}

// Exec runs a single command line and reports whether the shell should exit
func (sh *Shell) Exec(line string) bool {
	logger := util.GetLogger("Shell.Exec")

	args, err := splitArgs(line)
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	cmd, args := args[0], args[1:]
	logger.Debug().Str("cmd", cmd).Strs("args", args).Msg("Running command")

	if err := sh.run(cmd, args); err != nil {
		if errors.Is(err, errQuit) {
			return true
		}
		logger.Debug().Err(err).Str("cmd", cmd).Msg("Command failed")
		fmt.Fprintf(sh.out, "%s: %s\n", cmd, describe(err))
	}
	return false
}

var errQuit = errors.New("quit")

type usageError string

func (u usageError) Error() string {
	return "usage: " + string(u)
}

func (sh *Shell) run(cmd string, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "ls":
		return sh.ls(arg(0))
	case "cd":
		switch {
		case len(args) == 0:
			return sh.x.Cd("/")
		case args[0] == UpName:
			return sh.x.Back()
		default:
			return sh.x.Cd(args[0])
		}
	case "pwd":
		crumbs, err := sh.x.Breadcrumb()
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, joinNames(crumbs))
		return nil
	case "mkdir":
		if len(args) != 1 {
			return usageError("mkdir <path>")
		}
		_, err := sh.x.Mkdir(args[0])
		return err
	case "touch":
		if len(args) != 1 {
			return usageError("touch <path>")
		}
		_, err := sh.x.Touch(args[0], nil)
		return err
	case "cat":
		if len(args) != 1 {
			return usageError("cat <path>")
		}
		data, err := sh.x.Cat(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, string(data))
		return nil
	case "write":
		if len(args) < 1 {
			return usageError("write <path> <text>")
		}
		_, err := sh.x.Write(args[0], []byte(strings.Join(args[1:], " ")))
		return err
	case "mv":
		if len(args) != 2 {
			return usageError("mv <path> <new name>")
		}
		_, err := sh.x.Rename(args[0], args[1])
		return err
	case "move":
		if len(args) != 2 {
			return usageError("move <path> <folder>")
		}
		_, err := sh.x.MoveTo(args[0], args[1])
		return err
	case "rm":
		if len(args) != 1 {
			return usageError("rm <path>")
		}
		return sh.x.Remove(args[0])
	case "help":
		fmt.Fprintln(sh.out, helpText)
		return nil
	case "exit", "quit":
		return errQuit
	default:
		return errors.New("unknown command, try help")
	}
}

func (sh *Shell) ls(p string) error {
	if p != "" {
		// List another folder without moving the cursor
		saved := sh.x.cwd
		defer func() { sh.x.cwd = saved }()
		if err := sh.x.Cd(p); err != nil {
			return err
		}
	}
	entries, err := sh.x.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(sh.out, e.String())
	}
	return nil
}

// describe turns an error into a message for the shell user
func describe(err error) string {
	var u usageError
	switch {
	case errors.As(err, &u):
		return u.Error()
	case errors.Is(err, deskfs.ErrNotFound):
		return "no such file or folder"
	case errors.Is(err, deskfs.ErrDuplicateName):
		return "a file or folder with that name already exists"
	case errors.Is(err, deskfs.ErrInvalidName):
		return "invalid name"
	case errors.Is(err, deskfs.ErrCycleDetected):
		return "cannot move a folder into itself"
	case errors.Is(err, deskfs.ErrInvalidOperation):
		var ne *deskfs.NodeError
		if errors.As(err, &ne) {
			if reason, ok := strings.CutPrefix(ne.Err.Error(), deskfs.ErrInvalidOperation.Error()+": "); ok {
				return "not permitted, " + reason
			}
		}
		return "not permitted"
	case errors.Is(err, deskfs.ErrCorrupted):
		return "internal error, the tree is corrupted"
	default:
		return err.Error()
	}
}

func joinNames(nodes []deskfs.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return strings.Join(names, "/")
}

// splitArgs splits a command line on spaces, keeping double quoted runs together
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if pending {
		args = append(args, cur.String())
	}
	return args, nil
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a recording stub.
type execIface interface {
	Next(ctx context.Context) error
	Show(ctx context.Context, id, hint string) error
	Prev(ctx context.Context) error
	Fav(ctx context.Context) error
	Unfav(ctx context.Context, id string) error
	List(ctx context.Context, kind string) error
	Thumbs(ctx context.Context, kind, dir string) error
	Quality(ctx context.Context, q string) error
	Theme(ctx context.Context) error
	Download(ctx context.Context, dir string) error
	Share(ctx context.Context, target string) error
	Copy(ctx context.Context) error
	Stats(ctx context.Context) error
	Info(ctx context.Context) error
	ClearCache(ctx context.Context) error
	ClearHistory(ctx context.Context) error
	ClearFavs(ctx context.Context) error
	ClearStats(ctx context.Context) error
	report(err error)
}

const helpText = `Commands:
  next | n                    show a new random image
  show <id> [favs|history]    show a previously seen image
  prev | p                    show the previous image from history
  fav                         toggle favorite for the current image
  unfav <id>                  remove an image from favorites
  favs | history              list a collection
  thumbs <favs|history> <dir> write thumbnails of a collection
  quality <original|compressed>
  theme                       toggle dark/light theme
  download [dir]              save the current image
  share <weibo|qq>            print a share link
  copy                        copy the image link to the clipboard
  stats | info                show counters / current image details
  clear-cache                 drop cached images and load a new one
  clear-history | clear-favs | clear-stats
  exit | quit`

// runREPL reads one command per line and dispatches it to a. Handler errors
// are reported and the loop goes on; it ends on EOF, "exit" or "quit", or
// when ctx is done. The prompt, built from statusFn, is only printed for an
// interactive terminal.
func runREPL(ctx context.Context, a execIface, statusFn func() string, interactive bool, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return
		}
		if interactive {
			printlnFn(fmt.Sprintf("randpic %s> ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := func(i int) string {
			if i < len(args) {
				return args[i]
			}
			return ""
		}

		var err error
		switch cmd {
		case "help", "?":
			printlnFn(helpText)
		case "next", "n":
			err = a.Next(ctx)
		case "show":
			if len(args) == 0 {
				printlnFn("Usage: show <id> [favs|history]")
				continue
			}
			err = a.Show(ctx, arg(0), arg(1))
		case "prev", "p":
			err = a.Prev(ctx)
		case "fav":
			err = a.Fav(ctx)
		case "unfav":
			if len(args) == 0 {
				printlnFn("Usage: unfav <id>")
				continue
			}
			err = a.Unfav(ctx, arg(0))
		case "favs", "history":
			err = a.List(ctx, cmd)
		case "thumbs":
			if len(args) < 2 {
				printlnFn("Usage: thumbs <favs|history> <dir>")
				continue
			}
			err = a.Thumbs(ctx, arg(0), arg(1))
		case "quality":
			if len(args) == 0 {
				printlnFn("Usage: quality <original|compressed>")
				continue
			}
			err = a.Quality(ctx, arg(0))
		case "theme":
			err = a.Theme(ctx)
		case "download":
			err = a.Download(ctx, arg(0))
		case "share":
			if len(args) == 0 {
				printlnFn("Usage: share <weibo|qq>")
				continue
			}
			err = a.Share(ctx, arg(0))
		case "copy":
			err = a.Copy(ctx)
		case "stats":
			err = a.Stats(ctx)
		case "info":
			err = a.Info(ctx)
		case "clear-cache":
			err = a.ClearCache(ctx)
		case "clear-history":
			err = a.ClearHistory(ctx)
		case "clear-favs":
			err = a.ClearFavs(ctx)
		case "clear-stats":
			err = a.ClearStats(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			a.report(err)
		}
	}
}

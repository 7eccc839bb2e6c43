// chat-tail is a terminal viewer for one conversation. It logs in, opens a
// reconciled stream over the server's HTTP and websocket endpoints and
// prints the merged message/game timeline as it changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/notify"
	"anonchat/pkg/stream"
)

func main() {
	_ = godotenv.Load(".env")

	server := flag.String("server", "http://localhost:8080", "server base URL")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	conv := flag.String("conversation", "", "group/channel conversation id")
	dm := flag.String("dm", "", "user id to open a DM with")
	kind := flag.String("kind", models.KindGroup, "conversation kind (group|channel)")
	flag.Parse()

	logger.Init(os.Getenv("ANONCHAT_LOG_LEVEL"))

	if *username == "" || *password == "" {
		log.Fatal("-user and -pass are required")
	}
	if (*conv == "") == (*dm == "") {
		log.Fatal("exactly one of -conversation or -dm is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	client := stream.NewClient(*server, "")
	if err := client.Login(ctx, *username, *password); err != nil {
		log.Fatalf("login failed: %v", err)
	}
	selfID, selfName, err := client.Me(ctx)
	if err != nil {
		log.Fatalf("identity lookup failed: %v", err)
	}
	fmt.Printf("logged in as %s (%s)\n", selfName, selfID)

	var desc stream.Descriptor
	switch {
	case *dm != "":
		desc = stream.Direct(selfID, *dm)
	case *kind == models.KindChannel:
		desc = stream.Channel(*conv)
	default:
		desc = stream.Group(*conv)
	}

	var sink notify.Notifier = notify.Funcs(func(title, body string) {
		fmt.Printf("\a[%s] %s\n", title, body)
	})
	if tok, chat := os.Getenv("ANONCHAT_TELEGRAM_BOT_TOKEN"), os.Getenv("ANONCHAT_TELEGRAM_CHAT_ID"); tok != "" && chat != "" {
		tg := notify.NewTelegram(tok, chat)
		bell := sink
		sink = notify.Funcs(func(title, body string) {
			bell.Notify(title, body)
			tg.Notify(title, body)
		})
	}
	r := stream.New(client, client, sink, selfID)

	h, err := r.Open(ctx, desc)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	defer h.Close()
	select {
	case <-h.Ready():
	case <-time.After(30 * time.Second):
		log.Fatal("timed out waiting for history")
	}
	if err := h.Err(); err != nil {
		log.Fatalf("open failed: %v", err)
	}

	render(h.View())
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Done():
			fmt.Println("feed closed")
			return
		case <-h.Changes():
			render(h.View())
		}
	}
}

func render(items []stream.Item) {
	fmt.Printf("---- %d items ----\n", len(items))
	for _, it := range items {
		ts := time.Unix(0, it.Time).UTC().Format("15:04:05")
		switch it.Kind {
		case stream.ItemMessage:
			m := it.Message
			line := fmt.Sprintf("%s  %s: %s", ts, m.Author, m.Content)
			if it.Reply != nil {
				line += fmt.Sprintf("  (re %s: %s)", it.Reply.Author, trim(it.Reply.Content, 40))
			}
			if m.Edited {
				line += " (edited)"
			}
			fmt.Println(line)
		case stream.ItemGame:
			g := it.Game
			state := g.Status
			if g.Status == models.GameFinished {
				if g.Winner != "" {
					state = "finished, winner " + g.Winner
				} else {
					state = "finished, draw"
				}
			}
			fmt.Printf("%s  [game:%s] %s vs %s (%s)\n", ts, g.GameType, g.Player1, g.Player2, state)
		}
	}
}

func trim(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// Command cli is a terminal client for the chat relay.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/and161185/chat-relay/internal/model"
	"github.com/gorilla/websocket"
)

// closeGrace bounds the wait for the relay's close reply after we start
// the closing handshake.
const closeGrace = time.Second

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `chat CLI
Usage:
  cli [-relay ws://HOST:PORT/ws] [-gateway http://HOST:PORT] <cmd> [args]

Commands:
  version
  join     -u <username>                       (interactive session)
  send     -u <username> -m <text>
  send     -u <username> -file <path|->        ('-'=stdin)
  history  [-n <count>]                        (transcript via the gateway)
`)
	os.Exit(2)
}

// main dispatches subcommands against the relay and the gateway.
func main() {
	// global flags
	relay := flag.String("relay", "ws://localhost:5000/ws", "relay websocket URL")
	gateway := flag.String("gateway", "http://localhost:3000", "gateway base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	switch cmd {

	case "version":
		fmt.Printf("cli %s (%s)\n", version, buildDate)

	case "join":
		fs := flag.NewFlagSet("join", flag.ExitOnError)
		u := fs.String("u", "", "username")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" {
			fmt.Fprintln(os.Stderr, "need -u")
			os.Exit(1)
		}
		if err := join(*relay, *u); err != nil {
			fail(err)
		}

	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		u := fs.String("u", "", "username")
		m := fs.String("m", "", "message text")
		file := fs.String("file", "", "message body file ('-'=stdin)")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || (*m == "" && *file == "") {
			fmt.Fprintln(os.Stderr, "need -u and -m or -file")
			os.Exit(1)
		}

		body := *m
		if *file != "" {
			b, err := readAll(*file)
			if err != nil {
				fail(err)
			}
			body = strings.TrimRight(string(b), "\n")
		}

		if err := send(*relay, *u, body); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		n := fs.Int("n", 0, "print only the latest n messages")
		_ = fs.Parse(flag.Args()[1:])

		rows, err := history(*gateway, *n)
		if err != nil {
			fail(err)
		}
		printJSON(rows)

	default:
		usage()
	}
}

// ---- session ----

// join keeps an interactive session open: incoming frames print to stdout
// while every non-empty stdin line is relayed under the given username.
func join(relayURL, username string) error {
	conn, _, err := websocket.DefaultDialer.Dial(relayURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", relayURL, err)
	}
	defer conn.Close()

	// The reader owns the connection's fate; the scanner below cannot be
	// interrupted once it blocks on stdin.
	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintln(os.Stderr, "connection closed")
					os.Exit(0)
				}
				fmt.Fprintln(os.Stderr, "connection lost:", err)
				os.Exit(1)
			}
			var msg model.Message
			if err := json.Unmarshal(frame, &msg); err != nil {
				continue
			}
			fmt.Println(renderLine(msg))
		}
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if err := writeFrame(conn, username, text); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// EOF on stdin ends the session. The reader goroutine consumes the
	// close reply, so only start the handshake here and give it a moment.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGrace)
	return nil
}

// send relays a single message and waits for the closing handshake so the
// frame is not lost to an early teardown.
func send(relayURL, username, body string) error {
	conn, _, err := websocket.DefaultDialer.Dial(relayURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", relayURL, err)
	}
	defer conn.Close()

	if err := writeFrame(conn, username, body); err != nil {
		return err
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// history fetches the mirrored transcript through the gateway. n > 0
// keeps only the latest n rows.
func history(gatewayURL string, n int) ([]model.Message, error) {
	cli := &http.Client{Timeout: 5 * time.Second}
	resp, err := cli.Get(strings.TrimRight(gatewayURL, "/") + "/get_messages")
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: %s", resp.Status)
	}
	var rows []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

func writeFrame(conn *websocket.Conn, username, body string) error {
	payload, err := json.Marshal(model.Stamped(username, body))
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// renderLine formats one incoming frame for the terminal.
func renderLine(msg model.Message) string {
	return fmt.Sprintf("[%s] %s: %s", msg.Date.Local().Format("15:04:05"), msg.Username, msg.Body)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

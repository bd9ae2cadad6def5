package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/wire"
)

const chatHelp = `commands:
  /to USER_ID TEXT       direct message
  /ch CHANNEL_ID TEXT    channel message
  /ping
  /quit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a live connection and chat from the terminal",
	Long:  "Open a live connection and chat from the terminal.\n\n" + chatHelp,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc, cl, _, err := client()
		if err != nil {
			return err
		}
		defer cc.Close()
		return chat(cmd, cl, os.Stdin)
	},
}

// chat relays lines from in to the stream and prints every server event.
// It returns when the server ends the stream.
func chat(cmd *cobra.Command, cl chatv1.ChatClient, in io.Reader) error {
	st, err := cl.Connect(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	go func() {
		sc := bufio.NewScanner(in)
		n := 0
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			ev, err := parseLine(line, strconv.Itoa(n+1))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				continue
			}
			n++
			if err := st.Send(ev); err != nil {
				return
			}
			if ev.Type == wire.TypeLogout {
				return
			}
		}
		_ = st.CloseSend()
	}()

	for {
		ev, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatEvent(ev))
	}
}

// parseLine turns a terminal command into an inbound event.
func parseLine(line, requestID string) (*wire.Inbound, error) {
	if !strings.HasPrefix(line, "/") {
		return nil, errors.New("unknown input; " + chatHelp)
	}
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/to", "/ch":
		target, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		text = strings.TrimSpace(text)
		if target == "" || text == "" {
			return nil, fmt.Errorf("usage: %s ID TEXT", cmd)
		}
		ev := &wire.Inbound{RequestID: requestID, MessageType: "text", Content: text}
		if cmd == "/to" {
			ev.Type = wire.TypeSendDirect
			ev.Recipient = target
		} else {
			ev.Type = wire.TypeSendChannel
			ev.ChannelID = target
		}
		return ev, nil
	case "/ping":
		return &wire.Inbound{Type: wire.TypePing, RequestID: requestID}, nil
	case "/quit":
		return &wire.Inbound{Type: wire.TypeLogout}, nil
	}
	return nil, fmt.Errorf("unknown command %s; %s", cmd, chatHelp)
}

func formatEvent(ev *wire.Event) string {
	switch ev.Type {
	case wire.TypeHandshakeAck:
		return fmt.Sprintf("* connected as %s (connection %s)", ev.UserID, ev.ConnectionID)
	case wire.TypePresenceSnapshot:
		online := make([]string, 0, len(ev.Presence))
		for id, on := range ev.Presence {
			if on {
				online = append(online, id)
			}
		}
		sort.Strings(online)
		return "* online: " + strings.Join(online, ", ")
	case wire.TypePresence:
		state := "offline"
		if ev.Online != nil && *ev.Online {
			state = "online"
		}
		return fmt.Sprintf("* %s is %s", ev.UserID, state)
	case wire.TypeReceiveMessage, wire.TypeReceiveChannelMsg:
		if ev.Message == nil {
			return "* empty message"
		}
		return formatMessage(ev.Message)
	case wire.TypeSendAck:
		return fmt.Sprintf("* #%s delivered", ev.RequestID)
	case wire.TypeSendFailed, wire.TypeError:
		if ev.Error == nil {
			return "! " + ev.Type
		}
		return fmt.Sprintf("! %s (%s): %s", ev.Type, ev.Error.Code, ev.Error.Message)
	case wire.TypePong:
		return "* pong"
	}
	return "* " + ev.Type
}

func formatMessage(m *wire.Message) string {
	from := m.Sender.FirstName
	if from == "" {
		from = m.Sender.ID
	}
	if m.ChannelID != "" {
		from = from + " @" + m.ChannelID
	}
	body := m.Content
	if m.FileURL != "" {
		body = fmt.Sprintf("[file %s %s]", m.FileName, m.FileURL)
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format(time.TimeOnly), from, body)
}

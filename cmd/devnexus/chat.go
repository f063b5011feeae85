package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	stdsync "sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/phyoewaiaung/devnexus-go/internal/sync"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// typingIdleTimeout is how long after the last keystroke the outbound
// typing signal is retracted.
const typingIdleTimeout = 1500 * time.Millisecond

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Tail chat activity and send messages interactively",
	Long: "Connects to the server and prints message, typing, presence and\n" +
		"notification activity as it happens. With a conversation id, typed\n" +
		"lines are sent to that conversation. Commands: /read, /history, /quit.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, token, userID, err := loadSession()
		if err != nil {
			return err
		}

		printer := &chatPrinter{userID: userID}
		engine, err := newEngine(cfg, token, userID, printer)
		if err != nil {
			return err
		}
		defer engine.Close()
		printer.engine = engine

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err = engine.LoadConversations(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to load conversations: %w", err)
		}

		convs, err := engine.Conversations(context.Background())
		if err != nil {
			return err
		}
		fmt.Println("Conversations:")
		for _, conv := range convs {
			fmt.Printf("  %s  %s (unread %d)\n", conv.ID, conversationTitle(conv), conv.UnreadCount)
		}

		active := ""
		if len(args) == 1 {
			active = args[0]
			if err := engine.EnsureJoined(active); err != nil {
				return err
			}
			hctx, hcancel := context.WithTimeout(context.Background(), 15*time.Second)
			page, _, err := engine.LoadHistory(hctx, active, "", cfg.HistoryPageSize)
			hcancel()
			if err != nil {
				logger.Warnf("history load failed: %v", err)
			}
			for _, msg := range page {
				printer.printMessage(msg)
			}
		}

		return inputLoop(engine, active, cfg.HistoryPageSize)
	},
}

// inputLoop reads stdin rune by rune so typing can be signaled while a line
// is being composed, then dispatches each completed line.
func inputLoop(engine *sync.Engine, active string, pageSize int) error {
	typer := newTypingSignaler(engine, active)
	defer typer.stop()

	reader := bufio.NewReader(os.Stdin)
	var line strings.Builder
	cursor := ""

	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			return nil
		}
		if r != '\n' {
			line.WriteRune(r)
			typer.touch()
			continue
		}

		text := strings.TrimSpace(line.String())
		line.Reset()
		typer.settle()
		if text == "" {
			continue
		}

		switch {
		case text == "/quit":
			return nil
		case text == "/read":
			if active == "" {
				fmt.Println("no active conversation")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := engine.MarkRead(ctx, active)
			cancel()
			if err != nil {
				fmt.Printf("mark read failed: %v\n", err)
			}
		case text == "/history":
			if active == "" {
				fmt.Println("no active conversation")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			page, next, err := engine.LoadHistory(ctx, active, cursor, pageSize)
			cancel()
			if err != nil {
				fmt.Printf("history load failed: %v\n", err)
				continue
			}
			cursor = next
			fmt.Printf("loaded %d older messages\n", len(page))
		case strings.HasPrefix(text, "/"):
			fmt.Println("commands: /read /history /quit")
		default:
			if active == "" {
				fmt.Println("no active conversation; pass a conversation id to send")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			_, err := engine.SendAndWait(ctx, active, text, nil)
			cancel()
			if err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

// typingSignaler turns keystroke activity into the engine's on/off typing
// primitive: on at the first keystroke, off after an idle timeout or when
// the line is submitted.
type typingSignaler struct {
	engine *sync.Engine
	conv   string

	mu     stdsync.Mutex
	active bool
	timer  *time.Timer
}

func newTypingSignaler(engine *sync.Engine, conv string) *typingSignaler {
	return &typingSignaler{engine: engine, conv: conv}
}

func (t *typingSignaler) touch() {
	if t.conv == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		t.active = true
		if err := t.engine.SetTyping(t.conv, true); err != nil {
			logger.Debugf("typing signal: %v", err)
		}
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(typingIdleTimeout, t.settle)
}

func (t *typingSignaler) settle() {
	if t.conv == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.active {
		t.active = false
		if err := t.engine.SetTyping(t.conv, false); err != nil {
			logger.Debugf("typing signal: %v", err)
		}
	}
}

func (t *typingSignaler) stop() { t.settle() }

// chatPrinter tails engine activity to stdout.
type chatPrinter struct {
	sync.NoopListener
	userID string
	engine *sync.Engine

	mu      stdsync.Mutex
	printed map[string]bool
}

func (p *chatPrinter) OnConnected() {
	fmt.Println("* connected")
}

func (p *chatPrinter) OnDisconnected(reason string) {
	fmt.Printf("* disconnected: %s\n", reason)
}

func (p *chatPrinter) OnMessagesChanged(conversationID string) {
	msgs, err := p.engine.Messages(context.Background(), conversationID)
	if err != nil || len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]

	p.mu.Lock()
	if p.printed == nil {
		p.printed = make(map[string]bool)
	}
	key := last.Identity()
	seen := p.printed[key]
	p.printed[key] = true
	p.mu.Unlock()

	if !seen && last.SenderID != p.userID {
		p.printMessage(last)
	}
}

func (p *chatPrinter) OnTypingChanged(conversationID string) {
	snap, err := p.engine.Snapshot(context.Background())
	if err != nil {
		return
	}
	users := snap.Typing[conversationID]
	if len(users) == 0 {
		return
	}
	fmt.Printf("* %s typing in %s\n", strings.Join(users, ", "), conversationID)
}

func (p *chatPrinter) OnNotification(n types.Notification) {
	fmt.Printf("* notification [%s] %s %s\n", n.Type, n.Actor.Username, n.Preview)
}

func (p *chatPrinter) OnError(err error) {
	logger.Warnf("engine: %v", err)
}

func (p *chatPrinter) printMessage(msg types.Message) {
	ts := time.UnixMilli(msg.CreatedAt).Format("15:04")
	fmt.Printf("[%s] %s: %s\n", ts, msg.SenderID, msg.Text)
}

func conversationTitle(conv types.Conversation) string {
	if conv.Title != "" {
		return conv.Title
	}
	names := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.User.Name != "" {
			names = append(names, p.User.Name)
		} else {
			names = append(names, p.User.Username)
		}
	}
	return strings.Join(names, ", ")
}

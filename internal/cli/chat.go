package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/nerdson/internal/config"
	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/routing"
)

const defaultChatUser = "whatsapp:+5500000000000"

// consoleSender prints outbound messages instead of calling the gateway.
type consoleSender struct {
	w io.Writer
}

func (s consoleSender) Send(_ context.Context, msg domain.OutboundMessage) error {
	_, err := fmt.Fprintf(s.w, "bot> %s\n", msg.Body)
	return err
}

// handler is the part of the engine the REPL drives.
type handler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) routing.Result
}

// runChat feeds each input line to h as a message from user. A line of the
// form "/audio <url>" sends a voice note instead of text.
func runChat(ctx context.Context, h handler, user string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "you> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		msg := domain.InboundMessage{
			ID:         fmt.Sprintf("cli-%d", time.Now().UnixNano()),
			From:       user,
			Body:       line,
			ReceivedAt: time.Now(),
		}
		if url, ok := strings.CutPrefix(line, "/audio "); ok {
			msg.Body = ""
			msg.Media = []domain.Attachment{{URL: strings.TrimSpace(url), ContentType: "audio/ogg"}}
		}

		res := h.Handle(ctx, msg)
		if res.Route == policy.RouteSilence || res.Route == policy.RouteIgnore {
			fmt.Fprintf(out, "(%s)\n", res.Route)
		}
		fmt.Fprint(out, "you> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func newChatCmd() *cobra.Command {
	var (
		user     string
		noPauses bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot from the terminal",
		Long: "chat runs the real routing engine against the configured OpenAI model and prints\n" +
			"replies to the terminal instead of sending them through WhatsApp.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			// Chat never touches the archive.
			cfg.Archive.Enabled = false

			out := cmd.OutOrStdout()
			r, err := buildRelay(cfg, consoleSender{w: out}, relayOptions{noPauses: noPauses}, log)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, r.engine, user, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVar(&user, "from", defaultChatUser, "sender address to chat as")
	cmd.Flags().BoolVar(&noPauses, "no-pauses", false, "skip the typing pauses between messages")

	return cmd
}
